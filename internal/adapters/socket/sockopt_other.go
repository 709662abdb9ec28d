//go:build !linux

package socket

import (
	"context"
	"net"

	"github.com/bft-labs/migchan/internal/domain"
)

// listenInet binds a single socket; without SO_REUSEPORT load balancing
// every channel is accepted from the same socket.
func listenInet(ctx context.Context, a domain.InetAddress, count int) ([]net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.HostPort())
	if err != nil {
		return nil, err
	}
	return []net.Listener{ln}, nil
}

// probeZeroCopy reports false: MSG_ZEROCOPY is Linux only.
func probeZeroCopy(c net.Conn) bool { return false }
