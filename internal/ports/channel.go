package ports

import (
	"context"
	"io"

	"github.com/bft-labs/migchan/internal/domain"
)

// Feature is an optional transport capability a connected channel may
// advertise.
type Feature int

const (
	// FeatureZeroCopySend means writes can be issued without copying the
	// payload into kernel buffers (MSG_ZEROCOPY on Linux).
	FeatureZeroCopySend Feature = iota
)

// String returns the feature name used in logs and errors.
func (f Feature) String() string {
	switch f {
	case FeatureZeroCopySend:
		return "zero-copy-send"
	default:
		return "unknown"
	}
}

// Channel is a bidirectional byte stream carrying migration data.
// Close releases the channel; whoever holds the last reference closes it.
type Channel interface {
	io.ReadWriteCloser

	// Name returns the diagnostic name of the channel.
	Name() string

	// SetName labels the channel for diagnostics.
	SetName(name string)

	// HasFeature reports whether the transport advertises the capability.
	HasFeature(f Feature) bool

	// LocalAddress returns the local endpoint of the channel.
	LocalAddress() (domain.Address, error)
}

// Connector creates connected channels.
// Dial blocks; callers wanting asynchronous behaviour run it in a goroutine.
type Connector interface {
	Dial(ctx context.Context, addr domain.Address) (Channel, error)
}
