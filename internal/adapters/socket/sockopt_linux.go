//go:build linux

package socket

import (
	"context"
	"net"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/bft-labs/migchan/internal/domain"
)

// listenInet binds count TCP sockets to the same address with SO_REUSEPORT
// so the kernel spreads inbound channels across them. When the port is 0
// the first socket picks it and the others join that port.
func listenInet(ctx context.Context, a domain.InetAddress, count int) ([]net.Listener, error) {
	lc := net.ListenConfig{Control: setReusePort}

	first, err := lc.Listen(ctx, "tcp", a.HostPort())
	if err != nil {
		return nil, err
	}
	lns := []net.Listener{first}

	port := strconv.Itoa(first.Addr().(*net.TCPAddr).Port)
	hostPort := net.JoinHostPort(a.Host, port)
	for i := 1; i < count; i++ {
		ln, err := lc.Listen(ctx, "tcp", hostPort)
		if err != nil {
			closeAll(lns)
			return nil, err
		}
		lns = append(lns, ln)
	}
	return lns, nil
}

func setReusePort(network, address string, c syscall.RawConn) error {
	var serr error
	if err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	}); err != nil {
		return err
	}
	return serr
}

// probeZeroCopy enables SO_ZEROCOPY on the connection. Success means the
// kernel supports MSG_ZEROCOPY sends on this socket.
func probeZeroCopy(c net.Conn) bool {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return false
	}
	var serr error
	if err := raw.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_ZEROCOPY, 1)
	}); err != nil {
		return false
	}
	return serr == nil
}
