package migration

import (
	"sync/atomic"

	"github.com/bft-labs/migchan/internal/domain"
	"github.com/bft-labs/migchan/internal/ports"
)

var _ ports.EventEmitter = (*Events)(nil)

// Events logs resource ownership events and keeps counters for reporting.
type Events struct {
	logger ports.Logger

	stored   atomic.Int64
	released atomic.Int64
	dropped  atomic.Int64
}

// NewEvents creates an emitter logging at debug level.
func NewEvents(logger ports.Logger) *Events {
	return &Events{logger: logger}
}

// OnAddressStored implements ports.EventEmitter.
func (e *Events) OnAddressStored(addr domain.Address) {
	e.stored.Add(1)
	e.logger.Debug("outgoing address stored", ports.String("address", addr.String()))
}

// OnAddressReleased implements ports.EventEmitter.
func (e *Events) OnAddressReleased(addr domain.Address) {
	e.released.Add(1)
	e.logger.Debug("outgoing address released", ports.String("address", addr.String()))
}

// OnChannelDropped implements ports.EventEmitter.
func (e *Events) OnChannelDropped(name, reason string) {
	e.dropped.Add(1)
	e.logger.Debug("channel dropped",
		ports.String("channel", name),
		ports.String("reason", reason),
	)
}

// Counts returns the number of stored, released and dropped events.
func (e *Events) Counts() (stored, released, dropped int64) {
	return e.stored.Load(), e.released.Load(), e.dropped.Load()
}
