package app

import (
	"context"
	"errors"
	"testing"

	"github.com/bft-labs/migchan/internal/domain"
)

type incomingFixture struct {
	il        *IncomingListener
	binder    *fakeBinder
	registrar *countingRegistrar
	registry  *memRegistry
	emitter   *mockEmitter
	loop      *Loop
}

func newIncomingFixture(t *testing.T, expected int) *incomingFixture {
	t.Helper()
	f := &incomingFixture{
		binder:    &fakeBinder{},
		registrar: &countingRegistrar{expected: expected},
		registry:  &memRegistry{},
		emitter:   &mockEmitter{},
		loop:      startLoop(t),
	}
	f.il = NewIncomingListener(fakeResolver{}, f.binder, f.registrar, f.registry, f.loop, mockLogger{}, f.emitter)
	return f
}

func TestIncoming_Start_SizesListenerByPolicy(t *testing.T) {
	tests := []struct {
		name string
		caps domain.Capabilities
		want int
	}{
		{"single", domain.Capabilities{}, 1},
		{"multifd", domain.Capabilities{Multifd: true, MultifdChannels: 4}, 4},
		{"postcopy preempt", domain.Capabilities{PostcopyPreempt: true}, domain.PostcopyChannelMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIncomingFixture(t, tt.want)

			if err := f.il.Start(context.Background(), "tcp:0.0.0.0:4444", tt.caps); err != nil {
				t.Fatalf("Start() error: %v", err)
			}

			if f.binder.count != tt.want {
				t.Errorf("bound with count %d, want %d", f.binder.count, tt.want)
			}
			if got := len(f.registry.published()); got != tt.want {
				t.Errorf("published %d addresses, want %d", got, tt.want)
			}
			if f.binder.listener.Name() != listenerName {
				t.Errorf("listener name = %q, want %q", f.binder.listener.Name(), listenerName)
			}
			if !f.il.Listening() {
				t.Error("Listening() = false after successful Start")
			}
		})
	}
}

func TestIncoming_Start_ParseError(t *testing.T) {
	f := newIncomingFixture(t, 1)

	err := f.il.Start(context.Background(), "carrier-pigeon:home", domain.Capabilities{})

	if !errors.Is(err, domain.ErrAddressParse) {
		t.Fatalf("Start() error = %v, want ErrAddressParse", err)
	}
	if f.binder.count != 0 {
		t.Error("Bind called after parse failure")
	}
	if f.il.Listening() {
		t.Error("listener installed after parse failure")
	}
}

func TestIncoming_Start_BindFailureLeavesStateUntouched(t *testing.T) {
	f := newIncomingFixture(t, 1)
	f.binder.err = errors.New("address already in use")

	err := f.il.Start(context.Background(), "tcp:0.0.0.0:4444", domain.Capabilities{})

	if !errors.Is(err, domain.ErrBind) {
		t.Fatalf("Start() error = %v, want ErrBind", err)
	}
	if f.il.listener != nil || f.il.cleanup != nil {
		t.Error("bind failure left a partially set listener/cleanup pair")
	}
	if len(f.registry.published()) != 0 {
		t.Error("addresses published after bind failure")
	}

	// Stop after a failed start must be a no-op.
	f.il.Stop()
}

func TestIncoming_Start_Twice(t *testing.T) {
	f := newIncomingFixture(t, 1)
	ctx := context.Background()

	if err := f.il.Start(ctx, "tcp:0.0.0.0:4444", domain.Capabilities{}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	first := f.binder.listener

	if err := f.il.Start(ctx, "tcp:0.0.0.0:4445", domain.Capabilities{}); !errors.Is(err, domain.ErrAlreadyListening) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyListening", err)
	}
	if f.il.listener != first {
		t.Error("second Start replaced the active listener")
	}
}

func TestIncoming_PublishStopsAtFirstQueryError(t *testing.T) {
	f := newIncomingFixture(t, 3)
	queryErr := errors.New("getsockname: bad file descriptor")
	f.binder.sockErr = queryErr

	err := f.il.Start(context.Background(), "tcp:0.0.0.0:0", domain.Capabilities{Multifd: true, MultifdChannels: 3})

	if !errors.Is(err, domain.ErrAddressQuery) || !errors.Is(err, queryErr) {
		t.Fatalf("Start() error = %v, want ErrAddressQuery wrapping the socket error", err)
	}
	if got := len(f.registry.published()); got != 1 {
		t.Errorf("published %d addresses, want 1 (publication stops at the failing socket)", got)
	}
	if !f.il.Listening() {
		t.Error("listener must stay installed so the state machine cleanup can release it")
	}
}

func TestIncoming_ExcessConnectionsDropped(t *testing.T) {
	f := newIncomingFixture(t, 3)

	if err := f.il.Start(context.Background(), "tcp:0.0.0.0:4444", domain.Capabilities{Multifd: true, MultifdChannels: 3}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	chans := []*fakeChannel{newFakeChannel(), newFakeChannel(), newFakeChannel(), newFakeChannel()}
	for _, ch := range chans {
		f.binder.listener.accept(ch)
	}
	flushLoop(t, f.loop)

	if got := f.registrar.count(); got != 3 {
		t.Errorf("registered %d channels, want 3", got)
	}
	for i, ch := range chans[:3] {
		if ch.Name() != incomingChannelName {
			t.Errorf("channel %d name = %q, want %q", i, ch.Name(), incomingChannelName)
		}
		if ch.closeCount() != 0 {
			t.Errorf("registered channel %d was closed", i)
		}
	}
	if chans[3].closeCount() != 1 {
		t.Errorf("excess channel closed %d times, want 1", chans[3].closeCount())
	}
	if _, _, dropped := f.emitter.counts(); dropped != 1 {
		t.Errorf("dropped %d channels, want 1", dropped)
	}
}

func TestIncoming_StopIsIdempotent(t *testing.T) {
	f := newIncomingFixture(t, 1)

	if err := f.il.Start(context.Background(), "unix:/tmp/mig.sock", domain.Capabilities{}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	l := f.binder.listener

	f.il.Stop()
	f.il.Stop()

	if l.disconnected != 1 || l.closed != 1 {
		t.Errorf("disconnected=%d closed=%d, want 1 and 1", l.disconnected, l.closed)
	}
	if f.il.Listening() {
		t.Error("Listening() = true after Stop")
	}

	// The listener slot is free again.
	if err := f.il.Start(context.Background(), "unix:/tmp/mig.sock", domain.Capabilities{}); err != nil {
		t.Fatalf("Start() after Stop error: %v", err)
	}
}

func TestIncoming_AcceptAfterLoopStopClosesChannel(t *testing.T) {
	loop := NewLoop(mockLogger{}, 0)
	binder := &fakeBinder{}
	registrar := &countingRegistrar{expected: 1}
	il := NewIncomingListener(fakeResolver{}, binder, registrar, &memRegistry{}, loop, mockLogger{}, nil)

	if err := il.Start(context.Background(), "tcp:0.0.0.0:4444", domain.Capabilities{}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := loop.Stop(0); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	ch := newFakeChannel()
	binder.listener.accept(ch)

	if ch.closeCount() != 1 {
		t.Errorf("channel closed %d times, want 1", ch.closeCount())
	}
	if registrar.count() != 0 {
		t.Error("channel registered after loop stop")
	}
}
