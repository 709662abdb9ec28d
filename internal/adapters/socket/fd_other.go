//go:build !unix

package socket

import (
	"errors"
	"net"
)

var errFDUnsupported = errors.New("inherited socket descriptors are not supported on this platform")

func connFromFD(fd int) (net.Conn, error) { return nil, errFDUnsupported }

func listenerFromFD(fd int) (net.Listener, error) { return nil, errFDUnsupported }
