package ports

import "github.com/bft-labs/migchan/internal/domain"

// ConnectResult is the outcome of one outgoing connect attempt.
// Success and failure travel the same path: Channel may be set together
// with Err (feature negotiation failed on a live channel), Channel may be
// nil (connect failed), or Err may be nil (ready to use).
type ConnectResult struct {
	Channel  Channel
	Hostname string
	Err      error
}

// OutgoingRegistrar is the migration state machine entry point that
// receives every outgoing channel once its connect attempt completed.
// Ownership of a non-nil Channel passes to the registrar.
type OutgoingRegistrar interface {
	RegisterConnected(res ConnectResult)
}

// IncomingRegistrar is the migration state machine entry point for
// accepted channels. It decides each channel's role (main stream, multifd
// or postcopy index) by protocol negotiation.
type IncomingRegistrar interface {
	// RegisterAccepted takes ownership of an accepted channel.
	RegisterAccepted(ch Channel)

	// AllChannelsPresent reports whether the expected number of channels
	// has already been registered.
	AllChannelsPresent() bool
}

// AddressRegistry records the concrete addresses the incoming side is
// listening on, for management queries.
type AddressRegistry interface {
	Publish(addr domain.Address)
}
