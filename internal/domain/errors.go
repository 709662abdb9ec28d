package domain

import "errors"

// Domain errors represent error conditions in migration channel setup.
// They are wrapped with context by the caller and checked with errors.Is.
var (
	// ErrAddressParse is returned when a migration URI cannot be resolved
	// into an endpoint address. Reported synchronously, before any
	// resource is allocated.
	ErrAddressParse = errors.New("migchan: invalid migration address")

	// ErrConnect marks a transport-level connect failure. It is only ever
	// delivered through the channel registration callback.
	ErrConnect = errors.New("migchan: connect failed")

	// ErrFeatureNegotiation is delivered alongside a still-valid channel
	// when a required transport capability is missing.
	ErrFeatureNegotiation = errors.New("migchan: transport feature not available")

	// ErrBind is returned when the incoming listener cannot be set up.
	ErrBind = errors.New("migchan: bind failed")

	// ErrAddressQuery is returned when a bound socket's local address
	// cannot be read back.
	ErrAddressQuery = errors.New("migchan: local address query failed")

	// ErrAddressNotSet is returned when an additional outgoing channel is
	// requested before the primary connection stored an address.
	ErrAddressNotSet = errors.New("migchan: initial socket address not set")

	// ErrAlreadyListening is returned by a second incoming start while a
	// listener is still active.
	ErrAlreadyListening = errors.New("migchan: incoming listener already active")

	// ErrLoopStopped is returned when work is posted to a stopped event loop.
	ErrLoopStopped = errors.New("migchan: event loop stopped")

	// ErrShutdownTimeout is returned when the event loop does not drain in time.
	ErrShutdownTimeout = errors.New("migchan: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("migchan: invalid configuration")
)
