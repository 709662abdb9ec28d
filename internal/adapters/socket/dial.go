package socket

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/bft-labs/migchan/internal/domain"
	"github.com/bft-labs/migchan/internal/ports"
)

var _ ports.Connector = (*Dialer)(nil)

// Dialer opens outgoing migration channels for every address variant.
type Dialer struct {
	// Timeout is the maximum time to wait for a connection to be
	// established. Zero means only the context deadline applies.
	Timeout time.Duration
}

// Dial connects to addr and probes the optional transport features of the
// new connection.
func (d *Dialer) Dial(ctx context.Context, addr domain.Address) (ports.Channel, error) {
	var (
		c   net.Conn
		err error
	)

	switch a := addr.(type) {
	case domain.InetAddress:
		c, err = (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", a.HostPort())
	case domain.UnixAddress:
		c, err = (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "unix", a.Path)
	case domain.FDAddress:
		c, err = connFromFD(a.FD)
	case domain.VsockAddress:
		c, err = d.dialVsock(ctx, a)
	default:
		err = fmt.Errorf("unsupported address type %T", addr)
	}
	if err != nil {
		return nil, err
	}

	return newConn(c, probeZeroCopy(c)), nil
}
