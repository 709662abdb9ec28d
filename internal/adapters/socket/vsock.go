package socket

import (
	"context"
	"net"

	"github.com/mdlayher/vsock"

	"github.com/bft-labs/migchan/internal/domain"
)

// dialVsock connects over AF_VSOCK. vsock.Dial has no context variant, so
// the dial runs in a goroutine and a late connection is closed if ctx
// finished first.
func (d *Dialer) dialVsock(ctx context.Context, a domain.VsockAddress) (net.Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	type result struct {
		c   net.Conn
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := vsock.Dial(a.CID, a.Port, nil)
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{c: c}
	}()

	select {
	case r := <-done:
		return r.c, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.c != nil {
				_ = r.c.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func listenVsock(a domain.VsockAddress) (net.Listener, error) {
	return vsock.ListenContextID(a.CID, a.Port, nil)
}
