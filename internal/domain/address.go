package domain

import (
	"net"
	"strconv"
)

// AddressKind identifies the variant of an endpoint address.
type AddressKind int

const (
	KindInet AddressKind = iota
	KindUnix
	KindFD
	KindVsock
)

// String returns the URI scheme for the address kind.
func (k AddressKind) String() string {
	switch k {
	case KindInet:
		return "tcp"
	case KindUnix:
		return "unix"
	case KindFD:
		return "fd"
	case KindVsock:
		return "vsock"
	default:
		return "unknown"
	}
}

// Address is a resolved network endpoint.
// The set of implementations is closed: InetAddress, UnixAddress, FDAddress
// and VsockAddress. Values are immutable and may be shared between channel
// creation calls of the same migration.
type Address interface {
	// Kind reports the address variant.
	Kind() AddressKind

	// Hostname returns the host used for diagnostics and the channel
	// handshake. Only inet addresses carry one; others return "".
	Hostname() string

	// String renders the canonical URI form, e.g. "tcp:10.0.0.1:4444".
	String() string

	isAddress()
}

// InetAddress is a TCP host/port pair. Port may be "0" when binding to
// an ephemeral port.
type InetAddress struct {
	Host string
	Port string
}

func (InetAddress) Kind() AddressKind { return KindInet }

func (a InetAddress) Hostname() string { return a.Host }

// HostPort joins host and port for net.Dial style APIs.
func (a InetAddress) HostPort() string { return net.JoinHostPort(a.Host, a.Port) }

func (a InetAddress) String() string { return "tcp:" + a.HostPort() }

func (InetAddress) isAddress() {}

// UnixAddress is a filesystem path of a unix domain socket.
type UnixAddress struct {
	Path string
}

func (UnixAddress) Kind() AddressKind { return KindUnix }

func (UnixAddress) Hostname() string { return "" }

func (a UnixAddress) String() string { return "unix:" + a.Path }

func (UnixAddress) isAddress() {}

// FDAddress refers to a socket descriptor inherited from the parent
// process (for example a management daemon passing a connected socket).
type FDAddress struct {
	FD int
}

func (FDAddress) Kind() AddressKind { return KindFD }

func (FDAddress) Hostname() string { return "" }

func (a FDAddress) String() string { return "fd:" + strconv.Itoa(a.FD) }

func (FDAddress) isAddress() {}

// VsockAddress is an AF_VSOCK context ID and port.
type VsockAddress struct {
	CID  uint32
	Port uint32
}

func (VsockAddress) Kind() AddressKind { return KindVsock }

func (VsockAddress) Hostname() string { return "" }

func (a VsockAddress) String() string {
	return "vsock:" + strconv.FormatUint(uint64(a.CID), 10) + ":" + strconv.FormatUint(uint64(a.Port), 10)
}

func (VsockAddress) isAddress() {}
