package scheduler

import (
	"sync"
	"time"

	"bot-mirror/src/interfaces"
)

// intervalTask re-arms a one-shot task after every run until stopped.
type intervalTask struct {
	mu      sync.Mutex
	sched   interfaces.IScheduler
	every   time.Duration
	fn      func()
	current interfaces.ITask
	stopped bool
}

// Every runs fn on the scheduler every d, first after d.
func Every(sched interfaces.IScheduler, d time.Duration, fn func()) interfaces.ITask {
	t := &intervalTask{sched: sched, every: d, fn: fn}
	t.mu.Lock()
	t.current = sched.AfterFunc(d, t.tick)
	t.mu.Unlock()
	return t
}

func (t *intervalTask) tick() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.fn()

	t.mu.Lock()
	defer t.mu.Unlock()
	// fn may have stopped us
	if !t.stopped {
		t.current = t.sched.AfterFunc(t.every, t.tick)
	}
}

func (t *intervalTask) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	if t.current != nil {
		t.current.Stop()
	}
	return true
}
