package interfaces

// -----------------------------------------------------------------------------
// IStateObserver is notified after every store mutation. It runs on the
// writer's goroutine and must not block.
// -----------------------------------------------------------------------------

type IStateObserver interface {
	OnStateChanged(version uint64)
}

// -----------------------------------------------------------------------------
// IInitialSync seeds the store after a connection opens. isCurrent reports
// whether the connection that triggered the sync is still the live one.
// -----------------------------------------------------------------------------

type IInitialSync interface {
	Run(isCurrent func() bool)
}
