package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/migchan/internal/domain"
	"github.com/bft-labs/migchan/internal/ports"
)

// DefaultShutdownTimeout is the maximum time Stop waits for the loop to drain.
const DefaultShutdownTimeout = 30 * time.Second

// DefaultQueueSize is the number of completions that can be queued before
// posters block.
const DefaultQueueSize = 64

// State represents the lifecycle state of the event loop.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

type task struct {
	run     func()
	discard func()
}

// Loop is a single-consumer work queue. Connect and accept completions are
// posted to it so that every state machine callback runs on one goroutine,
// serially, and only after the call that issued the I/O has returned.
type Loop struct {
	mu    sync.RWMutex
	state State

	tasks    chan task
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}

	logger ports.Logger
}

// NewLoop creates an idle loop. Call Run to start consuming.
func NewLoop(logger ports.Logger, queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Loop{
		state:  StateIdle,
		tasks:  make(chan task, queueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Loop) transitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	switch oldState {
	case StateIdle:
		if newState != StateRunning && newState != StateStopped {
			l.mu.Unlock()
			return domain.ErrLoopStopped
		}
	case StateRunning:
		if newState != StateStopping {
			l.mu.Unlock()
			return domain.ErrLoopStopped
		}
	case StateStopping:
		if newState != StateStopped {
			l.mu.Unlock()
			return domain.ErrLoopStopped
		}
	case StateStopped:
		l.mu.Unlock()
		return domain.ErrLoopStopped
	}

	l.state = newState
	l.mu.Unlock()

	l.logger.Debug("event loop state transition",
		ports.String("from", oldState.String()),
		ports.String("to", newState.String()),
		ports.String("reason", reason),
	)
	return nil
}

// Run consumes posted work until ctx is cancelled or Stop is called.
// A loop runs at most once.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.transitionTo(StateRunning, "Run() called"); err != nil {
		return err
	}
	defer close(l.done)

	for {
		select {
		case t := <-l.tasks:
			t.run()
		case <-ctx.Done():
			l.shutdown("context done")
			return ctx.Err()
		case <-l.quit:
			l.shutdown("Stop() called")
			return nil
		}
	}
}

// shutdown discards everything still queued so that resources carried by
// pending completions are released. quit is closed before the state lock is
// taken so posters blocked on a full queue give up their read lock.
func (l *Loop) shutdown(reason string) {
	l.quitOnce.Do(func() { close(l.quit) })
	_ = l.transitionTo(StateStopping, reason)
	l.drain()
	_ = l.transitionTo(StateStopped, "drained")
}

func (l *Loop) drain() {
	for {
		select {
		case t := <-l.tasks:
			if t.discard != nil {
				t.discard()
			}
		default:
			return
		}
	}
}

// Post queues run for execution on the loop goroutine. If the loop is
// stopping, run is not executed: discard (when non-nil) is called instead
// and Post returns false.
func (l *Loop) Post(run, discard func()) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.state == StateStopping || l.state == StateStopped {
		if discard != nil {
			discard()
		}
		return false
	}

	select {
	case l.tasks <- task{run: run, discard: discard}:
		return true
	case <-l.quit:
		if discard != nil {
			discard()
		}
		return false
	}
}

// Stop asks the loop to exit and waits up to timeout for it to drain.
// Returns ErrShutdownTimeout if the loop does not finish in time.
func (l *Loop) Stop(timeout time.Duration) error {
	l.quitOnce.Do(func() { close(l.quit) })

	if l.State() == StateIdle {
		if err := l.transitionTo(StateStopped, "stopped before run"); err == nil {
			l.drain()
			return nil
		}
	}

	select {
	case <-l.done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("event loop shutdown timeout",
			ports.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
