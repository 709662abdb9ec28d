package registry

import (
	"sync"

	"github.com/bft-labs/migchan/internal/domain"
	"github.com/bft-labs/migchan/internal/ports"
)

var _ ports.AddressRegistry = (*Memory)(nil)

// Memory keeps published addresses in memory, in publication order.
type Memory struct {
	mu    sync.Mutex
	addrs []domain.Address
}

// NewMemory creates an empty registry.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish records addr.
func (m *Memory) Publish(addr domain.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addrs = append(m.addrs, addr)
}

// Addresses returns a copy of the published addresses.
func (m *Memory) Addresses() []domain.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Address(nil), m.addrs...)
}

// Reset forgets all published addresses.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addrs = nil
}
