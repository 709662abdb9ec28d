// Package migchan sets up the transport channels of a VM live migration:
// the primary outgoing connection and its multifd fan-out on the source,
// and a listener sized for the expected channel set on the destination.
//
// Example usage:
//
//	m, err := migchan.New(migchan.Capabilities{Multifd: true, MultifdChannels: 4},
//		migchan.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go m.Run(ctx)
//	defer m.Stop(migchan.DefaultShutdownTimeout)
//
//	out, err := m.Send("tcp:10.0.0.2:4444")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	<-out.Done()
package migchan

import (
	"context"
	"fmt"
	"time"

	logAdapter "github.com/bft-labs/migchan/internal/adapters/log"
	"github.com/bft-labs/migchan/internal/adapters/migration"
	"github.com/bft-labs/migchan/internal/adapters/registry"
	"github.com/bft-labs/migchan/internal/adapters/socket"
	"github.com/bft-labs/migchan/internal/app"
	"github.com/bft-labs/migchan/internal/domain"
	"github.com/bft-labs/migchan/internal/ports"
)

type (
	// Address is a resolved migration endpoint.
	Address = domain.Address

	// Capabilities holds the policy inputs that decide the channel count.
	Capabilities = domain.Capabilities

	// Channel is one bidirectional migration stream.
	Channel = ports.Channel

	// Logger is the interface for structured logging.
	Logger = ports.Logger

	// LogField represents a structured log field.
	LogField = ports.Field

	// EventEmitter observes address and channel ownership changes.
	EventEmitter = ports.EventEmitter

	// AddressRegistry receives the concrete listen addresses.
	AddressRegistry = ports.AddressRegistry
)

// Errors reported by migchan. Check with errors.Is.
var (
	ErrAddressParse       = domain.ErrAddressParse
	ErrConnect            = domain.ErrConnect
	ErrFeatureNegotiation = domain.ErrFeatureNegotiation
	ErrBind               = domain.ErrBind
	ErrAddressQuery       = domain.ErrAddressQuery
	ErrAddressNotSet      = domain.ErrAddressNotSet
	ErrAlreadyListening   = domain.ErrAlreadyListening
	ErrInvalidConfig      = domain.ErrInvalidConfig
	ErrShutdownTimeout    = domain.ErrShutdownTimeout
)

// DefaultShutdownTimeout is the default drain timeout for Stop.
const DefaultShutdownTimeout = app.DefaultShutdownTimeout

// Option configures optional behavior of Migchan.
type Option func(*options)

type options struct {
	logger         ports.Logger
	emitter        ports.EventEmitter
	registry       ports.AddressRegistry
	connectTimeout time.Duration
	queueSize      int
}

// WithLogger sets a custom logger. If not provided, a no-op logger is used.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventEmitter sets an observer for ownership events.
func WithEventEmitter(emitter EventEmitter) Option {
	return func(o *options) {
		o.emitter = emitter
	}
}

// WithAddressRegistry sets where listen addresses are published, in
// addition to the in-memory registry behind Listener.Addresses.
func WithAddressRegistry(r AddressRegistry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithConnectTimeout bounds every asynchronous connect.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		o.connectTimeout = d
	}
}

// WithQueueSize sets the event loop queue size.
func WithQueueSize(n int) Option {
	return func(o *options) {
		o.queueSize = n
	}
}

// Migchan wires the channel core to the socket transport and a minimal
// migration state machine. One instance serves any number of sequential
// migrations; all completions run on its event loop.
type Migchan struct {
	caps    domain.Capabilities
	opts    options
	logger  ports.Logger
	loop    *app.Loop
	manager *app.OutgoingManager
	parser  socket.Parser
	binder  ports.Binder
}

// New validates caps and creates an instance. Call Run to start the loop.
func New(caps Capabilities, opts ...Option) (*Migchan, error) {
	if err := caps.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logAdapter.NewNoopLogger()
	}

	loop := app.NewLoop(logger, o.queueSize)
	parser := socket.Parser{}
	dialer := &socket.Dialer{Timeout: o.connectTimeout}
	manager := app.NewOutgoingManager(
		app.OutgoingConfig{ConnectTimeout: o.connectTimeout},
		parser, dialer, caps, loop, logger, o.emitter,
	)

	return &Migchan{
		caps:    caps,
		opts:    o,
		logger:  logger,
		loop:    loop,
		manager: manager,
		parser:  parser,
		binder:  &socket.Binder{Logger: logger},
	}, nil
}

// Run drives the event loop until ctx is cancelled or Stop is called.
func (m *Migchan) Run(ctx context.Context) error {
	return m.loop.Run(ctx)
}

// Stop stops the event loop. Completions still queued are discarded and
// the channels they carry are closed.
func (m *Migchan) Stop(timeout time.Duration) error {
	return m.loop.Stop(timeout)
}

// ChannelCount returns the number of channels a migration uses.
func (m *Migchan) ChannelCount() int {
	return app.RequiredChannelCount(m.caps)
}

// Outgoing is one outgoing migration.
type Outgoing struct {
	*migration.Outgoing

	manager *app.OutgoingManager
	session *app.OutgoingSession
}

// Send resolves uri and connects the primary channel; the remaining
// channels are opened to the same address once it is up. Only address
// errors are returned here; connect results are reported by Result after
// Done is closed.
func (m *Migchan) Send(uri string) (*Outgoing, error) {
	sm := migration.NewOutgoing(m.ChannelCount(), m.logger)
	session := app.NewOutgoingSession(sm)
	sm.SetOpener(func(done func(ports.ConnectResult)) {
		m.manager.CreateChannel(session, done)
	})

	if err := m.manager.StartPrimary(session, uri); err != nil {
		return nil, err
	}
	return &Outgoing{Outgoing: sm, manager: m.manager, session: session}, nil
}

// Address returns the address the channels were opened to.
func (o *Outgoing) Address() Address {
	return o.session.Address()
}

// OpenChannel opens one more channel to the migration address and waits
// for it.
func (o *Outgoing) OpenChannel(ctx context.Context) (Channel, error) {
	return o.manager.CreateChannelSync(ctx, o.session)
}

// Close releases every channel and the stored address.
func (o *Outgoing) Close() error {
	err := o.Outgoing.Close()
	_ = o.manager.Destroy(o.session, nil)
	return err
}

// Listener is one incoming migration.
type Listener struct {
	*migration.Incoming

	listener *app.IncomingListener
	addrs    *registry.Memory
}

// Listen binds uri with room for the expected channel set and accepts
// until all channels arrived. Connections beyond the expected count are
// closed.
func (m *Migchan) Listen(ctx context.Context, uri string) (*Listener, error) {
	sm := migration.NewIncoming(m.ChannelCount(), m.logger)
	addrs := registry.NewMemory()

	var pub ports.AddressRegistry = addrs
	if m.opts.registry != nil {
		pub = registry.Multi{addrs, m.opts.registry}
	}

	il := app.NewIncomingListener(m.parser, m.binder, sm, pub, m.loop, m.logger, m.opts.emitter)
	l := &Listener{Incoming: sm, listener: il, addrs: addrs}
	if err := il.Start(ctx, uri, m.caps); err != nil {
		if il.Listening() {
			il.Stop()
		}
		return nil, fmt.Errorf("listen %s: %w", uri, err)
	}
	return l, nil
}

// Addresses returns the concrete addresses the listener is bound to.
func (l *Listener) Addresses() []Address {
	return l.addrs.Addresses()
}

// StopAccepting closes the listening sockets and keeps accepted channels.
func (l *Listener) StopAccepting() {
	l.listener.Stop()
}

// Close stops accepting and releases every accepted channel.
func (l *Listener) Close() error {
	l.listener.Stop()
	return l.Incoming.Close()
}
