package migration

import (
	"errors"
	"sync"

	"github.com/bft-labs/migchan/internal/ports"
)

var _ ports.IncomingRegistrar = (*Incoming)(nil)

// Incoming is the destination-side state machine. It owns accepted
// channels and is complete once the expected number arrived.
type Incoming struct {
	expected int
	logger   ports.Logger

	mu       sync.Mutex
	channels []ports.Channel
	closed   bool
	done     chan struct{}
	once     sync.Once
}

// NewIncoming creates a state machine waiting for expected channels.
func NewIncoming(expected int, logger ports.Logger) *Incoming {
	if expected < 1 {
		expected = 1
	}
	return &Incoming{
		expected: expected,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// RegisterAccepted takes ownership of ch. Once closed, ch is released
// immediately.
func (in *Incoming) RegisterAccepted(ch ports.Channel) {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		_ = ch.Close()
		return
	}
	in.channels = append(in.channels, ch)
	n := len(in.channels)
	in.mu.Unlock()

	in.logger.Info("incoming migration channel registered",
		ports.Int("channel", n),
		ports.Int("expected", in.expected),
	)
	if n >= in.expected {
		in.once.Do(func() { close(in.done) })
	}
}

// AllChannelsPresent reports whether the expected channel count was
// reached. A closed state machine accepts nothing more and reports true.
func (in *Incoming) AllChannelsPresent() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.closed || len(in.channels) >= in.expected
}

// Done is closed when all expected channels are registered.
func (in *Incoming) Done() <-chan struct{} {
	return in.done
}

// Channels returns the registered channels in arrival order.
func (in *Incoming) Channels() []ports.Channel {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]ports.Channel(nil), in.channels...)
}

// Close releases every registered channel. Channels registered later are
// closed on arrival.
func (in *Incoming) Close() error {
	in.mu.Lock()
	chans := in.channels
	in.channels = nil
	in.closed = true
	in.mu.Unlock()

	var errs []error
	for _, ch := range chans {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
