package registry

import (
	"github.com/bft-labs/migchan/internal/domain"
	"github.com/bft-labs/migchan/internal/ports"
)

// Multi publishes every address to all of its registries.
type Multi []ports.AddressRegistry

// Publish implements ports.AddressRegistry.
func (m Multi) Publish(addr domain.Address) {
	for _, r := range m {
		r.Publish(addr)
	}
}
