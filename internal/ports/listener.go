package ports

import (
	"context"

	"github.com/bft-labs/migchan/internal/domain"
)

// AcceptHandler is invoked once per accepted connection. It may be called
// concurrently from the listener's independent sockets.
type AcceptHandler func(l Listener, ch Channel)

// Socket is one OS-level listening socket owned by a Listener.
type Socket interface {
	// LocalAddress returns the concrete bound address, with ephemeral
	// ports resolved.
	LocalAddress() (domain.Address, error)
}

// Listener accepts inbound channels on one or more listening sockets.
type Listener interface {
	// SetName labels the listener for diagnostics.
	SetName(name string)

	// Name returns the diagnostic name.
	Name() string

	// Sockets returns the listening sockets in bind order.
	Sockets() []Socket

	// SetAcceptHandler installs fn and starts accepting. Passing nil stops
	// dispatching new connections.
	SetAcceptHandler(fn AcceptHandler)

	// Disconnect stops accepting and closes the listening sockets.
	// Safe to call more than once.
	Disconnect()

	// Close releases the listener. Implies Disconnect.
	Close() error
}

// Binder opens listeners.
type Binder interface {
	// Bind opens a listener on addr, reserving capacity for count
	// concurrent inbound channels up front.
	Bind(ctx context.Context, addr domain.Address, count int) (Listener, error)
}
