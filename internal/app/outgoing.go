package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/migchan/internal/domain"
	"github.com/bft-labs/migchan/internal/ports"
)

const outgoingChannelName = "migration-socket-outgoing"

// OutgoingSession is the outgoing transport state of one migration. It
// remembers the address the primary channel was opened to, so additional
// multifd channels reuse it instead of resolving the URI again.
// The session is owned by the migration that created it.
type OutgoingSession struct {
	registrar ports.OutgoingRegistrar

	mu   sync.Mutex
	addr domain.Address
}

// NewOutgoingSession creates a session whose connected channels are handed
// to registrar.
func NewOutgoingSession(registrar ports.OutgoingRegistrar) *OutgoingSession {
	return &OutgoingSession{registrar: registrar}
}

// Address returns the stored address, or nil when none is set.
func (s *OutgoingSession) Address() domain.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// replace stores addr and returns the address it displaced.
func (s *OutgoingSession) replace(addr domain.Address) domain.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.addr
	s.addr = addr
	return prev
}

// clear drops the stored address and returns it.
func (s *OutgoingSession) clear() domain.Address {
	return s.replace(nil)
}

// connectRequest lives from the moment a connect is issued until its
// completion has been handed off.
type connectRequest struct {
	session  *OutgoingSession
	hostname string
	done     func(ports.ConnectResult)
}

// OutgoingConfig contains tunables for the outgoing side.
type OutgoingConfig struct {
	// ConnectTimeout bounds a single asynchronous connect. Zero means no
	// timeout beyond what the transport imposes.
	ConnectTimeout time.Duration
}

// OutgoingManager opens outgoing migration channels and hands each of them,
// connected or not, to the session's registrar.
type OutgoingManager struct {
	config    OutgoingConfig
	resolver  ports.Resolver
	connector ports.Connector
	policy    ports.Policy
	loop      *Loop
	logger    ports.Logger
	emitter   ports.EventEmitter
}

// NewOutgoingManager creates a manager. emitter may be nil.
func NewOutgoingManager(
	config OutgoingConfig,
	resolver ports.Resolver,
	connector ports.Connector,
	policy ports.Policy,
	loop *Loop,
	logger ports.Logger,
	emitter ports.EventEmitter,
) *OutgoingManager {
	return &OutgoingManager{
		config:    config,
		resolver:  resolver,
		connector: connector,
		policy:    policy,
		loop:      loop,
		logger:    logger,
		emitter:   emitter,
	}
}

// StartPrimary resolves uri and starts connecting the first channel of the
// migration. Only resolution errors are returned; the connect outcome is
// delivered to the session's registrar.
func (m *OutgoingManager) StartPrimary(s *OutgoingSession, uri string) error {
	addr, err := m.resolver.Resolve(uri)
	if err != nil {
		if !errors.Is(err, domain.ErrAddressParse) {
			err = fmt.Errorf("%w: %q: %w", domain.ErrAddressParse, uri, err)
		}
		return err
	}
	m.Connect(s, addr)
	return nil
}

// Connect stores addr as the session address, releasing the previous one,
// and issues an asynchronous connect. It returns immediately.
func (m *OutgoingManager) Connect(s *OutgoingSession, addr domain.Address) {
	if prev := s.replace(addr); prev != nil {
		m.logger.Debug("released previous outgoing address", ports.String("address", prev.String()))
		if m.emitter != nil {
			m.emitter.OnAddressReleased(prev)
		}
	}
	if m.emitter != nil {
		m.emitter.OnAddressStored(addr)
	}

	req := &connectRequest{
		session:  s,
		hostname: addr.Hostname(),
		done:     s.registrar.RegisterConnected,
	}
	m.connectAsync(req, addr)
}

// CreateChannel asynchronously opens one more channel to the session
// address, for multifd fan-out. done runs on the event loop.
func (m *OutgoingManager) CreateChannel(s *OutgoingSession, done func(ports.ConnectResult)) {
	addr := s.Address()
	if addr == nil {
		// Posted from its own goroutine: the caller may be on the loop.
		go m.loop.Post(func() {
			done(ports.ConnectResult{Err: domain.ErrAddressNotSet})
		}, nil)
		return
	}
	m.connectAsync(&connectRequest{session: s, hostname: addr.Hostname(), done: done}, addr)
}

// CreateChannelSync opens one more channel to the session address and
// blocks until it is connected. Unlike the asynchronous paths the error is
// returned to the caller.
func (m *OutgoingManager) CreateChannelSync(ctx context.Context, s *OutgoingSession) (ports.Channel, error) {
	addr := s.Address()
	if addr == nil {
		return nil, domain.ErrAddressNotSet
	}
	ch, err := m.connector.Dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrConnect, addr, err)
	}
	ch.SetName(outgoingChannelName)
	return ch, nil
}

// Destroy releases ch and clears the session address. It always succeeds
// and may be called when no address is stored.
func (m *OutgoingManager) Destroy(s *OutgoingSession, ch ports.Channel) error {
	if ch != nil {
		if err := ch.Close(); err != nil {
			m.logger.Debug("close outgoing channel", ports.String("channel", ch.Name()), ports.Err(err))
		}
	}
	if prev := s.clear(); prev != nil && m.emitter != nil {
		m.emitter.OnAddressReleased(prev)
	}
	return nil
}

func (m *OutgoingManager) connectAsync(req *connectRequest, addr domain.Address) {
	go func() {
		ctx := context.Background()
		if m.config.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.config.ConnectTimeout)
			defer cancel()
		}

		ch, err := m.connector.Dial(ctx, addr)
		m.loop.Post(func() {
			m.onConnectComplete(req, ch, err)
		}, func() {
			if ch != nil {
				_ = ch.Close()
			}
		})
	}()
}

// onConnectComplete runs on the event loop. Every outcome goes to the
// same hand-off; a feature error keeps the channel so the state machine
// decides how to dispose of it.
func (m *OutgoingManager) onConnectComplete(req *connectRequest, ch ports.Channel, err error) {
	if err != nil {
		if ch != nil {
			_ = ch.Close()
			ch = nil
		}
		err = fmt.Errorf("%w: %w", domain.ErrConnect, err)
		m.logger.Warn("outgoing migration connect failed", ports.Err(err))
	} else {
		ch.SetName(outgoingChannelName)
		m.logger.Info("outgoing migration channel connected", ports.String("hostname", req.hostname))

		if m.policy.ZeroCopyRequired() && !ch.HasFeature(ports.FeatureZeroCopySend) {
			err = fmt.Errorf("%w: zero copy send feature not detected in host kernel", domain.ErrFeatureNegotiation)
		}
	}

	req.done(ports.ConnectResult{Channel: ch, Hostname: req.hostname, Err: err})
}
