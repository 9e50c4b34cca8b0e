package interfaces

// IAlertSink plays a named notification. Unknown names are ignored.
type IAlertSink interface {
	Play(name string) bool
}

// ILivenessAcker records a liveness acknowledgment.
type ILivenessAcker interface {
	Ack()
}
