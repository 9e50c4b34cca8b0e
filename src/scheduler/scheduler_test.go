package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 6, 9, 15, 0, 0, time.UTC)

func TestVirtualSchedulerFiresInDeadlineOrder(t *testing.T) {
	v := NewVirtualScheduler(epoch)
	var order []string

	v.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	v.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	v.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	v.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"a"}, order)

	v.Advance(10 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, epoch.Add(11500*time.Millisecond), v.Now())
}

func TestVirtualSchedulerStop(t *testing.T) {
	v := NewVirtualScheduler(epoch)
	fired := false
	task := v.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, task.Stop())
	assert.False(t, task.Stop())
	v.Advance(5 * time.Second)
	assert.False(t, fired)
	assert.Equal(t, 0, v.PendingTimers())
}

func TestVirtualSchedulerPostRunsOnlyOnDrain(t *testing.T) {
	v := NewVirtualScheduler(epoch)
	count := 0
	v.Post(func() {
		count++
		v.Post(func() { count++ })
	})
	assert.Equal(t, 0, count)

	v.Drain()
	assert.Equal(t, 2, count)
}

func TestVirtualSchedulerTimerSeesItsDeadline(t *testing.T) {
	v := NewVirtualScheduler(epoch)
	var seen time.Time
	v.AfterFunc(4*time.Second, func() { seen = v.Now() })

	v.Advance(time.Minute)
	assert.Equal(t, epoch.Add(4*time.Second), seen)
}

func TestEveryRepeatsUntilStopped(t *testing.T) {
	v := NewVirtualScheduler(epoch)
	ticks := 0
	task := Every(v, 15*time.Second, func() { ticks++ })

	v.Advance(46 * time.Second)
	assert.Equal(t, 3, ticks)

	assert.True(t, task.Stop())
	v.Advance(time.Minute)
	assert.Equal(t, 3, ticks)
	assert.False(t, task.Stop())
}

func TestEveryStoppedFromInsideTick(t *testing.T) {
	v := NewVirtualScheduler(epoch)
	ticks := 0
	var task interface{ Stop() bool }
	task = Every(v, time.Second, func() {
		ticks++
		if ticks == 2 {
			task.Stop()
		}
	})

	v.Advance(10 * time.Second)
	assert.Equal(t, 2, ticks)
	assert.Equal(t, 0, v.PendingTimers())
}

func TestEventLoopRunsPostedCallbacksInOrder(t *testing.T) {
	loop := NewEventLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		loop.Post(func() { got = append(got, i) })
	}
	require.NoError(t, loop.Call(ctx, func() {}))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestEventLoopStoppedTaskDoesNotRun(t *testing.T) {
	loop := NewEventLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var fired atomic.Bool
	task := loop.AfterFunc(20*time.Millisecond, func() { fired.Store(true) })
	assert.True(t, task.Stop())

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, loop.Call(ctx, func() {}))
	assert.False(t, fired.Load())
}

func TestEventLoopAfterFuncFires(t *testing.T) {
	loop := NewEventLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var fired atomic.Bool
	task := loop.AfterFunc(5*time.Millisecond, func() { fired.Store(true) })

	require.Eventually(t, fired.Load, time.Second, 5*time.Millisecond)
	assert.False(t, task.Stop())
}

func TestEventLoopRecoversPanics(t *testing.T) {
	loop := NewEventLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	loop.Post(func() { panic("boom") })
	ran := false
	require.NoError(t, loop.Call(ctx, func() { ran = true }))
	assert.True(t, ran)
}

func TestEventLoopStopsOnCancel(t *testing.T) {
	loop := NewEventLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	cancel()

	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("event loop did not stop")
	}
}
