//go:build unix

package socket

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// connFromFD adopts an inherited, connected stream socket. The descriptor
// is consumed: net.FileConn duplicates it and fd itself is closed.
func connFromFD(fd int) (net.Conn, error) {
	if err := checkStreamSocket(fd); err != nil {
		return nil, err
	}
	f := os.NewFile(uintptr(fd), "fd:"+strconv.Itoa(fd))
	defer f.Close()
	return net.FileConn(f)
}

// listenerFromFD adopts an inherited listening stream socket.
func listenerFromFD(fd int) (net.Listener, error) {
	if err := checkStreamSocket(fd); err != nil {
		return nil, err
	}
	f := os.NewFile(uintptr(fd), "fd:"+strconv.Itoa(fd))
	defer f.Close()
	return net.FileListener(f)
}

func checkStreamSocket(fd int) error {
	typ, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TYPE)
	if err != nil {
		return fmt.Errorf("fd %d is not a socket: %w", fd, err)
	}
	if typ != unix.SOCK_STREAM {
		return fmt.Errorf("fd %d is not a stream socket", fd)
	}
	return nil
}
