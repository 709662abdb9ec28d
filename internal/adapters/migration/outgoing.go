package migration

import (
	"errors"
	"sync"

	"github.com/bft-labs/migchan/internal/ports"
)

var _ ports.OutgoingRegistrar = (*Outgoing)(nil)

// Opener starts one additional outgoing channel to the address of the
// primary channel and reports it through done.
type Opener func(done func(ports.ConnectResult))

// Outgoing is the source-side state machine. It takes ownership of every
// channel handed to it: the primary, then the expected-1 extra channels it
// opens once the primary is up.
type Outgoing struct {
	expected int
	logger   ports.Logger

	mu       sync.Mutex
	open     Opener
	channels []ports.Channel
	errs     []error
	results  int
	finished bool
	done     chan struct{}
}

// NewOutgoing creates a state machine expecting expected channels in total.
func NewOutgoing(expected int, logger ports.Logger) *Outgoing {
	if expected < 1 {
		expected = 1
	}
	return &Outgoing{
		expected: expected,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// SetOpener installs the function used to open the extra channels.
func (o *Outgoing) SetOpener(fn Opener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open = fn
}

// RegisterConnected receives the primary channel result. A failed primary
// ends the migration; a good one triggers the fan-out. After Close the
// channel is released and nothing more is opened.
func (o *Outgoing) RegisterConnected(res ports.ConnectResult) {
	o.mu.Lock()
	if o.finished {
		o.mu.Unlock()
		if res.Channel != nil {
			_ = res.Channel.Close()
		}
		o.logger.Debug("primary migration channel arrived after close")
		return
	}
	o.record(res)
	if res.Err != nil {
		o.finishLocked()
		o.mu.Unlock()
		o.logger.Error("primary migration channel failed", ports.Err(res.Err))
		return
	}
	open := o.open
	extra := o.expected - 1
	o.checkLocked()
	o.mu.Unlock()

	o.logger.Info("primary migration channel connected",
		ports.String("hostname", res.Hostname),
		ports.Int("extra_channels", extra),
	)
	if open == nil {
		return
	}
	for i := 0; i < extra; i++ {
		open(o.registerExtra)
	}
}

func (o *Outgoing) registerExtra(res ports.ConnectResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.finished {
		if res.Channel != nil {
			_ = res.Channel.Close()
		}
		return
	}
	o.record(res)
	o.checkLocked()
}

func (o *Outgoing) record(res ports.ConnectResult) {
	o.results++
	if res.Channel != nil {
		o.channels = append(o.channels, res.Channel)
	}
	if res.Err != nil {
		o.errs = append(o.errs, res.Err)
	}
}

func (o *Outgoing) checkLocked() {
	if o.results >= o.expected {
		o.finishLocked()
	}
}

func (o *Outgoing) finishLocked() {
	if o.finished {
		return
	}
	o.finished = true
	close(o.done)
}

// Done is closed once every expected result arrived or the primary failed.
func (o *Outgoing) Done() <-chan struct{} {
	return o.done
}

// Result returns the owned channels and the joined channel errors.
func (o *Outgoing) Result() ([]ports.Channel, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ports.Channel(nil), o.channels...), errors.Join(o.errs...)
}

// Close releases every owned channel. Later results are closed on arrival.
func (o *Outgoing) Close() error {
	o.mu.Lock()
	chans := o.channels
	o.channels = nil
	o.finishLocked()
	o.mu.Unlock()

	var errs []error
	for _, ch := range chans {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
