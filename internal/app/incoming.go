package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/migchan/internal/domain"
	"github.com/bft-labs/migchan/internal/ports"
)

const (
	listenerName        = "migration-socket-listener"
	incomingChannelName = "migration-socket-incoming"
)

// IncomingListener owns the listening side of an incoming migration. The
// listener and its cleanup are set together after a successful bind and
// cleared together by Stop.
type IncomingListener struct {
	resolver  ports.Resolver
	binder    ports.Binder
	registrar ports.IncomingRegistrar
	registry  ports.AddressRegistry
	loop      *Loop
	logger    ports.Logger
	emitter   ports.EventEmitter

	mu       sync.Mutex
	listener ports.Listener
	cleanup  func()
}

// NewIncomingListener creates an incoming listener. emitter may be nil.
func NewIncomingListener(
	resolver ports.Resolver,
	binder ports.Binder,
	registrar ports.IncomingRegistrar,
	registry ports.AddressRegistry,
	loop *Loop,
	logger ports.Logger,
	emitter ports.EventEmitter,
) *IncomingListener {
	return &IncomingListener{
		resolver:  resolver,
		binder:    binder,
		registrar: registrar,
		registry:  registry,
		loop:      loop,
		logger:    logger,
		emitter:   emitter,
	}
}

// Start resolves uri, binds a listener sized for the channel count the
// policy requires and begins accepting. Resolution and bind errors are
// returned synchronously and leave the listener state untouched.
func (il *IncomingListener) Start(ctx context.Context, uri string, policy ports.Policy) error {
	addr, err := il.resolver.Resolve(uri)
	if err != nil {
		if !errors.Is(err, domain.ErrAddressParse) {
			err = fmt.Errorf("%w: %q: %w", domain.ErrAddressParse, uri, err)
		}
		return err
	}

	il.mu.Lock()
	defer il.mu.Unlock()

	if il.listener != nil {
		return domain.ErrAlreadyListening
	}

	count := RequiredChannelCount(policy)
	l, err := il.binder.Bind(ctx, addr, count)
	if err != nil {
		if !errors.Is(err, domain.ErrBind) {
			err = fmt.Errorf("%w: %s: %w", domain.ErrBind, addr, err)
		}
		return err
	}
	l.SetName(listenerName)

	il.listener = l
	il.cleanup = func() {
		l.Disconnect()
		if err := l.Close(); err != nil {
			il.logger.Debug("close incoming listener", ports.Err(err))
		}
	}
	l.SetAcceptHandler(il.dispatch)

	il.logger.Info("incoming migration listening",
		ports.String("address", addr.String()),
		ports.Int("channels", count),
		ports.Int("sockets", len(l.Sockets())),
	)

	return il.publishBoundAddresses(l)
}

// publishBoundAddresses reports the concrete address of every listening
// socket. The first address that cannot be read ends publication.
func (il *IncomingListener) publishBoundAddresses(l ports.Listener) error {
	for i, sock := range l.Sockets() {
		addr, err := sock.LocalAddress()
		if err != nil {
			if !errors.Is(err, domain.ErrAddressQuery) {
				err = fmt.Errorf("%w: socket %d: %w", domain.ErrAddressQuery, i, err)
			}
			return err
		}
		il.registry.Publish(addr)
	}
	return nil
}

// dispatch is the listener's accept handler. It moves the accepted channel
// onto the event loop; if the loop is gone the channel is closed.
func (il *IncomingListener) dispatch(l ports.Listener, ch ports.Channel) {
	il.loop.Post(func() {
		il.onAccept(l, ch)
	}, func() {
		_ = ch.Close()
	})
}

// onAccept runs on the event loop once per inbound connection. Connections
// beyond the expected channel count are closed rather than registered.
func (il *IncomingListener) onAccept(l ports.Listener, ch ports.Channel) {
	il.logger.Debug("incoming migration connection accepted", ports.String("listener", l.Name()))

	if il.registrar.AllChannelsPresent() {
		il.logger.Warn("extra incoming migration connection; ignoring", ports.String("listener", l.Name()))
		name := ch.Name()
		if err := ch.Close(); err != nil {
			il.logger.Debug("close extra incoming connection", ports.Err(err))
		}
		if il.emitter != nil {
			il.emitter.OnChannelDropped(name, "all expected channels present")
		}
		return
	}

	ch.SetName(incomingChannelName)
	il.registrar.RegisterAccepted(ch)
}

// Stop disconnects and releases the listener. Calling it again, or before
// Start succeeded, does nothing.
func (il *IncomingListener) Stop() {
	il.mu.Lock()
	cleanup := il.cleanup
	il.listener = nil
	il.cleanup = nil
	il.mu.Unlock()

	if cleanup == nil {
		return
	}
	cleanup()
	il.logger.Info("incoming migration listener stopped")
}

// Listening reports whether a listener is currently installed.
func (il *IncomingListener) Listening() bool {
	il.mu.Lock()
	defer il.mu.Unlock()
	return il.listener != nil
}
