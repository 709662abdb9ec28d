package socket

import (
	"net"
	"sync"

	"github.com/bft-labs/migchan/internal/domain"
	"github.com/bft-labs/migchan/internal/ports"
)

var _ ports.Channel = (*Conn)(nil)

// Conn is a connected migration channel backed by a net.Conn.
type Conn struct {
	net.Conn

	zeroCopy bool

	mu   sync.Mutex
	name string

	closeOnce sync.Once
	closeErr  error
}

func newConn(c net.Conn, zeroCopy bool) *Conn {
	return &Conn{Conn: c, zeroCopy: zeroCopy}
}

// Name returns the diagnostic name.
func (c *Conn) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// SetName labels the channel.
func (c *Conn) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

// HasFeature reports transport capabilities detected at connect time.
func (c *Conn) HasFeature(f ports.Feature) bool {
	switch f {
	case ports.FeatureZeroCopySend:
		return c.zeroCopy
	default:
		return false
	}
}

// LocalAddress returns the local endpoint of the connection.
func (c *Conn) LocalAddress() (domain.Address, error) {
	return toAddress(c.Conn.LocalAddr())
}

// Close closes the underlying connection once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Conn.Close()
	})
	return c.closeErr
}
