package domain

import "fmt"

// PostcopyChannelMax is the number of channels a postcopy-preempt migration
// uses: the regular precopy stream plus the preempt fast-path stream.
const PostcopyChannelMax = 2

// Capabilities holds the migration policy inputs that shape channel setup.
// The configuration layer guarantees Multifd and PostcopyPreempt are not
// both enabled; the channel core does not re-check it.
type Capabilities struct {
	// Multifd stripes migration state across MultifdChannels parallel channels.
	Multifd bool

	// MultifdChannels is the number of multifd channels (>= 1 when Multifd).
	MultifdChannels int

	// PostcopyPreempt adds a dedicated fast-path channel for page faults.
	PostcopyPreempt bool

	// ZeroCopySend requires every outgoing channel to support zero-copy send.
	ZeroCopySend bool
}

func (c Capabilities) MultifdEnabled() bool { return c.Multifd }

func (c Capabilities) MultifdChannelCount() int { return c.MultifdChannels }

func (c Capabilities) PostcopyPreemptEnabled() bool { return c.PostcopyPreempt }

func (c Capabilities) ZeroCopyRequired() bool { return c.ZeroCopySend }

// Validate checks the policy preconditions the channel core relies on.
func (c Capabilities) Validate() error {
	if c.Multifd && c.MultifdChannels < 1 {
		return fmt.Errorf("%w: multifd channel count must be at least 1, got %d", ErrInvalidConfig, c.MultifdChannels)
	}
	if c.Multifd && c.PostcopyPreempt {
		return fmt.Errorf("%w: multifd and postcopy-preempt are mutually exclusive", ErrInvalidConfig)
	}
	return nil
}
