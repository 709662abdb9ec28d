package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/bft-labs/migchan/internal/domain"
	"github.com/bft-labs/migchan/internal/ports"
)

var (
	_ ports.Binder   = (*Binder)(nil)
	_ ports.Listener = (*Listener)(nil)
)

// Binder opens migration listeners.
type Binder struct {
	Logger ports.Logger
}

// Bind opens a listener on addr. For TCP on Linux it binds count sockets
// sharing one port; all other variants use a single socket.
func (b *Binder) Bind(ctx context.Context, addr domain.Address, count int) (ports.Listener, error) {
	if count < 1 {
		count = 1
	}

	var (
		lns []net.Listener
		err error
	)
	switch a := addr.(type) {
	case domain.InetAddress:
		lns, err = listenInet(ctx, a, count)
	case domain.UnixAddress:
		lns, err = listenUnix(ctx, a)
	case domain.FDAddress:
		lns, err = single(listenerFromFD(a.FD))
	case domain.VsockAddress:
		lns, err = single(listenVsock(a))
	default:
		err = fmt.Errorf("unsupported address type %T", addr)
	}
	if err != nil {
		return nil, err
	}

	return newListener(lns, b.Logger), nil
}

// listenUnix replaces a stale socket left at the path. Anything other than
// a socket is left alone and the bind fails.
func listenUnix(ctx context.Context, a domain.UnixAddress) ([]net.Listener, error) {
	fi, err := os.Lstat(a.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("stat %s: %w", a.Path, err)
	case fi.Mode()&os.ModeSocket == 0:
		return nil, fmt.Errorf("%s exists and is not a socket", a.Path)
	default:
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	var lc net.ListenConfig
	return single(lc.Listen(ctx, "unix", a.Path))
}

func single(ln net.Listener, err error) ([]net.Listener, error) {
	if err != nil {
		return nil, err
	}
	return []net.Listener{ln}, nil
}

func closeAll(lns []net.Listener) {
	for _, ln := range lns {
		_ = ln.Close()
	}
}

// listenSocket is one bound socket of a Listener.
type listenSocket struct {
	ln net.Listener
}

func (s listenSocket) LocalAddress() (domain.Address, error) {
	return toAddress(s.ln.Addr())
}

// Listener accepts connections on one or more sockets, each with its own
// accept goroutine. Accepted connections are handed to the installed
// AcceptHandler from those goroutines.
type Listener struct {
	lns    []net.Listener
	logger ports.Logger

	mu      sync.Mutex
	name    string
	handler ports.AcceptHandler
	started bool
	closed  bool
	done    chan struct{}
}

func newListener(lns []net.Listener, logger ports.Logger) *Listener {
	return &Listener{
		lns:    lns,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// SetName labels the listener.
func (l *Listener) SetName(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.name = name
}

// Name returns the diagnostic name.
func (l *Listener) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

// Sockets returns the bound sockets in bind order.
func (l *Listener) Sockets() []ports.Socket {
	out := make([]ports.Socket, len(l.lns))
	for i, ln := range l.lns {
		out[i] = listenSocket{ln: ln}
	}
	return out
}

// SetAcceptHandler installs fn. The first non-nil handler starts the
// accept goroutines.
func (l *Listener) SetAcceptHandler(fn ports.AcceptHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.handler = fn
	if fn == nil || l.started || l.closed {
		return
	}
	l.started = true
	for _, ln := range l.lns {
		go l.acceptLoop(ln)
	}
}

func (l *Listener) acceptLoop(ln net.Listener) {
	bo := newBackoff(acceptBackoffInitial, acceptBackoffMax)

	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-l.done:
				return
			default:
			}
			l.logger.Warn("accept failed, retrying",
				ports.String("listener", l.Name()),
				ports.Err(err),
			)
			if !bo.Sleep(l.done) {
				return
			}
			continue
		}
		bo.Reset()

		l.mu.Lock()
		fn := l.handler
		l.mu.Unlock()

		if fn == nil {
			_ = c.Close()
			continue
		}
		fn(l, newConn(c, probeZeroCopy(c)))
	}
}

// Disconnect stops dispatching and closes the listening sockets. Accept
// goroutines exit on their own; Disconnect does not wait for them.
func (l *Listener) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.handler = nil
	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
	for _, ln := range l.lns {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			l.logger.Debug("close listening socket", ports.Err(err))
		}
	}
}

// Close releases the listener.
func (l *Listener) Close() error {
	l.Disconnect()
	return nil
}
