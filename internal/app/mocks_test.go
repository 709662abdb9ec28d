package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/migchan/internal/domain"
	"github.com/bft-labs/migchan/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// mockEmitter records resource ownership events.
type mockEmitter struct {
	mu       sync.Mutex
	stored   []domain.Address
	released []domain.Address
	dropped  []string
}

func (m *mockEmitter) OnAddressStored(addr domain.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, addr)
}

func (m *mockEmitter) OnAddressReleased(addr domain.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, addr)
}

func (m *mockEmitter) OnChannelDropped(name, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = append(m.dropped, name)
}

func (m *mockEmitter) counts() (stored, released, dropped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stored), len(m.released), len(m.dropped)
}

// fakeChannel is an in-memory ports.Channel.
type fakeChannel struct {
	mu       sync.Mutex
	name     string
	features map[ports.Feature]bool
	closed   int
	local    domain.Address
}

func newFakeChannel(features ...ports.Feature) *fakeChannel {
	ch := &fakeChannel{features: make(map[ports.Feature]bool)}
	for _, f := range features {
		ch.features[f] = true
	}
	return ch
}

func (c *fakeChannel) Read(p []byte) (int, error)  { return 0, io.EOF }
func (c *fakeChannel) Write(p []byte) (int, error) { return len(p), nil }

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeChannel) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *fakeChannel) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

func (c *fakeChannel) HasFeature(f ports.Feature) bool { return c.features[f] }

func (c *fakeChannel) LocalAddress() (domain.Address, error) { return c.local, nil }

func (c *fakeChannel) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeResolver accepts "tcp:host:port" and "unix:path" and rejects the rest.
type fakeResolver struct{}

func (fakeResolver) Resolve(uri string) (domain.Address, error) {
	switch {
	case strings.HasPrefix(uri, "tcp:"):
		rest := strings.TrimPrefix(uri, "tcp:")
		i := strings.LastIndex(rest, ":")
		if i < 0 {
			return nil, errors.New("missing port")
		}
		return domain.InetAddress{Host: rest[:i], Port: rest[i+1:]}, nil
	case strings.HasPrefix(uri, "unix:"):
		return domain.UnixAddress{Path: strings.TrimPrefix(uri, "unix:")}, nil
	default:
		return nil, errors.New("unknown scheme")
	}
}

// fakeConnector dials by calling fn and records the addresses it was given.
type fakeConnector struct {
	mu    sync.Mutex
	addrs []domain.Address
	fn    func(addr domain.Address) (ports.Channel, error)
}

func (c *fakeConnector) Dial(ctx context.Context, addr domain.Address) (ports.Channel, error) {
	c.mu.Lock()
	c.addrs = append(c.addrs, addr)
	c.mu.Unlock()
	return c.fn(addr)
}

func (c *fakeConnector) dialed() []domain.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Address{}, c.addrs...)
}

// recordingRegistrar collects outgoing connect results.
type recordingRegistrar struct {
	results chan ports.ConnectResult
}

func newRecordingRegistrar() *recordingRegistrar {
	return &recordingRegistrar{results: make(chan ports.ConnectResult, 16)}
}

func (r *recordingRegistrar) RegisterConnected(res ports.ConnectResult) {
	r.results <- res
}

func (r *recordingRegistrar) next(t *testing.T) ports.ConnectResult {
	t.Helper()
	select {
	case res := <-r.results:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for RegisterConnected")
		return ports.ConnectResult{}
	}
}

func (r *recordingRegistrar) expectNone(t *testing.T) {
	t.Helper()
	select {
	case res := <-r.results:
		t.Fatalf("unexpected RegisterConnected call: %+v", res)
	case <-time.After(50 * time.Millisecond):
	}
}

// fakeSocket is a listening socket with a fixed local address.
type fakeSocket struct {
	addr domain.Address
	err  error
}

func (s fakeSocket) LocalAddress() (domain.Address, error) { return s.addr, s.err }

// fakeListener delivers connections pushed through accept.
type fakeListener struct {
	mu           sync.Mutex
	name         string
	sockets      []ports.Socket
	handler      ports.AcceptHandler
	disconnected int
	closed       int
}

func (l *fakeListener) SetName(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.name = name
}

func (l *fakeListener) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

func (l *fakeListener) Sockets() []ports.Socket { return l.sockets }

func (l *fakeListener) SetAcceptHandler(fn ports.AcceptHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = fn
}

func (l *fakeListener) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnected++
	l.handler = nil
}

func (l *fakeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed++
	return nil
}

func (l *fakeListener) accept(ch ports.Channel) {
	l.mu.Lock()
	fn := l.handler
	l.mu.Unlock()
	if fn != nil {
		fn(l, ch)
	}
}

// fakeBinder hands out a fakeListener with count sockets, or fails.
type fakeBinder struct {
	err      error
	sockErr  error
	count    int
	listener *fakeListener
}

func (b *fakeBinder) Bind(ctx context.Context, addr domain.Address, count int) (ports.Listener, error) {
	b.count = count
	if b.err != nil {
		return nil, b.err
	}
	l := &fakeListener{}
	for i := 0; i < count; i++ {
		s := fakeSocket{addr: domain.InetAddress{Host: "127.0.0.1", Port: "4444"}}
		if i == 1 {
			s.err = b.sockErr
		}
		l.sockets = append(l.sockets, s)
	}
	b.listener = l
	return l, nil
}

// countingRegistrar is an incoming registrar expecting a fixed channel count.
type countingRegistrar struct {
	mu         sync.Mutex
	expected   int
	registered []ports.Channel
}

func (r *countingRegistrar) RegisterAccepted(ch ports.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, ch)
}

func (r *countingRegistrar) AllChannelsPresent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.registered) >= r.expected
}

func (r *countingRegistrar) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.registered)
}

// memRegistry records published addresses.
type memRegistry struct {
	mu    sync.Mutex
	addrs []domain.Address
}

func (r *memRegistry) Publish(addr domain.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs = append(r.addrs, addr)
}

func (r *memRegistry) published() []domain.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Address{}, r.addrs...)
}

// startLoop runs a loop for the duration of the test.
func startLoop(t *testing.T) *Loop {
	t.Helper()
	loop := NewLoop(mockLogger{}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return loop
}

// flushLoop waits until everything posted so far has run.
func flushLoop(t *testing.T, loop *Loop) {
	t.Helper()
	done := make(chan struct{})
	if !loop.Post(func() { close(done) }, nil) {
		t.Fatal("loop rejected flush")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out flushing loop")
	}
}
