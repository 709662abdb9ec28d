package socket

import (
	"fmt"
	"net"
	"strconv"

	"github.com/mdlayher/vsock"

	"github.com/bft-labs/migchan/internal/domain"
)

// toAddress converts a socket address reported by the kernel into a
// domain address.
func toAddress(a net.Addr) (domain.Address, error) {
	switch v := a.(type) {
	case *net.TCPAddr:
		return domain.InetAddress{Host: v.IP.String(), Port: strconv.Itoa(v.Port)}, nil
	case *net.UnixAddr:
		return domain.UnixAddress{Path: v.Name}, nil
	case *vsock.Addr:
		return domain.VsockAddress{CID: v.ContextID, Port: v.Port}, nil
	case nil:
		return nil, fmt.Errorf("%w: no address", domain.ErrAddressQuery)
	default:
		return nil, fmt.Errorf("%w: unsupported address type %T", domain.ErrAddressQuery, a)
	}
}
