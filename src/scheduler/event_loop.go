package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"bot-mirror/src/interfaces"
	"bot-mirror/src/logger"
)

// -----------------------------------------------------------------------------
// EventLoop runs every posted callback on a single goroutine, in post order.
// Timers fire by posting onto the loop, so a handler never races another one.
// -----------------------------------------------------------------------------

type EventLoop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	done    chan struct{}
	running atomic.Bool
	logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewEventLoop(log *logger.Logger) *EventLoop {
	if log == nil {
		log = logger.NewNop("EventLoop")
	}
	return &EventLoop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: log,
	}
}

// -----------------------------------------------------------------------------

// Run drains the queue until ctx is cancelled. Callbacks posted after Run
// returns are dropped.
func (l *EventLoop) Run(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		l.logger.Warning("Event loop already running")
		return
	}
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Event loop stopped: %v", ctx.Err())
			return
		case <-l.wake:
		}

		for {
			batch := l.takePending()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				if ctx.Err() != nil {
					return
				}
				l.execute(fn)
			}
		}
	}
}

// -----------------------------------------------------------------------------

// Done is closed once Run has returned.
func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}

// -----------------------------------------------------------------------------

func (l *EventLoop) Now() time.Time {
	return time.Now()
}

// -----------------------------------------------------------------------------

func (l *EventLoop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

// Call posts fn and waits for it to finish, or for ctx to end.
func (l *EventLoop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-l.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------

func (l *EventLoop) AfterFunc(d time.Duration, fn func()) interfaces.ITask {
	task := &loopTask{}
	task.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			// Stop may have won the race after the timer fired
			if task.state.CompareAndSwap(taskPending, taskFired) {
				fn()
			}
		})
	})
	return task
}

// -----------------------------------------------------------------------------

func (l *EventLoop) takePending() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.pending
	l.pending = nil
	return batch
}

// -----------------------------------------------------------------------------

func (l *EventLoop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Recovered panic in event loop callback: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

// -----------------------------------------------------------------------------
// loopTask
// -----------------------------------------------------------------------------

const (
	taskPending int32 = iota
	taskStopped
	taskFired
)

type loopTask struct {
	timer *time.Timer
	state atomic.Int32
}

func (t *loopTask) Stop() bool {
	if !t.state.CompareAndSwap(taskPending, taskStopped) {
		return false
	}
	t.timer.Stop()
	return true
}
