package ports

import "github.com/bft-labs/migchan/internal/domain"

// EventEmitter receives notifications about transport resource ownership.
// Calls are made synchronously; implementations must not block.
type EventEmitter interface {
	// OnAddressStored is called when an outgoing session stores a new address.
	OnAddressStored(addr domain.Address)

	// OnAddressReleased is called when a stored outgoing address is released,
	// either by being overwritten or by destroy.
	OnAddressReleased(addr domain.Address)

	// OnChannelDropped is called when an accepted channel is closed instead
	// of being registered.
	OnChannelDropped(name string, reason string)
}
