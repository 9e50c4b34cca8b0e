package scheduler

import (
	"sync"
	"time"

	"bot-mirror/src/interfaces"
)

// -----------------------------------------------------------------------------
// VirtualScheduler is a deterministic scheduler driven by Advance and Drain.
// Nothing runs until the caller asks for it.
// -----------------------------------------------------------------------------

type VirtualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*virtualTask
	queue  []func()
}

type virtualTask struct {
	owner   *VirtualScheduler
	at      time.Time
	seq     uint64
	fn      func()
	stopped bool
	fired   bool
}

// -----------------------------------------------------------------------------

func NewVirtualScheduler(start time.Time) *VirtualScheduler {
	return &VirtualScheduler{now: start}
}

// -----------------------------------------------------------------------------

func (v *VirtualScheduler) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// -----------------------------------------------------------------------------

func (v *VirtualScheduler) Post(fn func()) {
	if fn == nil {
		return
	}
	v.mu.Lock()
	v.queue = append(v.queue, fn)
	v.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (v *VirtualScheduler) AfterFunc(d time.Duration, fn func()) interfaces.ITask {
	v.mu.Lock()
	defer v.mu.Unlock()
	if d < 0 {
		d = 0
	}
	v.seq++
	task := &virtualTask{owner: v, at: v.now.Add(d), seq: v.seq, fn: fn}
	v.timers = append(v.timers, task)
	return task
}

// -----------------------------------------------------------------------------

// Drain runs posted callbacks, including ones they post, until the queue is empty.
func (v *VirtualScheduler) Drain() {
	for {
		v.mu.Lock()
		if len(v.queue) == 0 {
			v.mu.Unlock()
			return
		}
		fn := v.queue[0]
		v.queue = v.queue[1:]
		v.mu.Unlock()
		fn()
	}
}

// -----------------------------------------------------------------------------

// Advance moves virtual time forward by d, firing due timers in deadline order
// and draining posted callbacks after each one.
func (v *VirtualScheduler) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()

	for {
		v.Drain()

		v.mu.Lock()
		next := v.nextDueLocked(target)
		if next == nil {
			v.now = target
			v.mu.Unlock()
			break
		}
		v.now = next.at
		next.fired = true
		v.mu.Unlock()

		next.fn()
	}

	v.Drain()
}

// -----------------------------------------------------------------------------

// PendingTimers returns the number of timers not yet fired or stopped.
func (v *VirtualScheduler) PendingTimers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.compactLocked()
	return len(v.timers)
}

// -----------------------------------------------------------------------------

// NextDeadline returns the earliest pending timer deadline.
func (v *VirtualScheduler) NextDeadline() (time.Time, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.compactLocked()
	var best *virtualTask
	for _, t := range v.timers {
		if best == nil || earlier(t, best) {
			best = t
		}
	}
	if best == nil {
		return time.Time{}, false
	}
	return best.at, true
}

// -----------------------------------------------------------------------------

func (v *VirtualScheduler) nextDueLocked(target time.Time) *virtualTask {
	v.compactLocked()
	var best *virtualTask
	for _, t := range v.timers {
		if t.at.After(target) {
			continue
		}
		if best == nil || earlier(t, best) {
			best = t
		}
	}
	return best
}

// -----------------------------------------------------------------------------

func (v *VirtualScheduler) compactLocked() {
	live := v.timers[:0]
	for _, t := range v.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(v.timers); i++ {
		v.timers[i] = nil
	}
	v.timers = live
}

// -----------------------------------------------------------------------------

func earlier(a, b *virtualTask) bool {
	if a.at.Equal(b.at) {
		return a.seq < b.seq
	}
	return a.at.Before(b.at)
}

// -----------------------------------------------------------------------------

func (t *virtualTask) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
