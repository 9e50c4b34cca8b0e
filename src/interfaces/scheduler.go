package interfaces

import "time"

// -----------------------------------------------------------------------------
// ITask is a cancellable delayed callback.
// -----------------------------------------------------------------------------

type ITask interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped it; false means it already ran or was already stopped.
	Stop() bool
}

// -----------------------------------------------------------------------------
// IScheduler serializes every callback onto one logical thread.
// -----------------------------------------------------------------------------

type IScheduler interface {

	// -----------------------------------------------------------------------------

	// Now returns the scheduler's notion of the current time.
	Now() time.Time

	// -----------------------------------------------------------------------------

	// Post enqueues fn to run on the scheduler thread. Safe from any goroutine.
	Post(fn func())

	// -----------------------------------------------------------------------------

	// AfterFunc runs fn on the scheduler thread once d has elapsed.
	AfterFunc(d time.Duration, fn func()) ITask
}
