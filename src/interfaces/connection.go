package interfaces

// -----------------------------------------------------------------------------
// ConnEvents are the four handlers attached to a wire connection. The transport
// may invoke them from its own goroutines.
// -----------------------------------------------------------------------------

type ConnEvents struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnClose   func(code int, reason string)
	OnError   func(err error)
}

// -----------------------------------------------------------------------------
// IConn is one wire connection, possibly still opening.
// -----------------------------------------------------------------------------

type IConn interface {
	// Send writes one text frame.
	Send(data []byte) error

	// -----------------------------------------------------------------------------

	// Close closes the connection with a close code and reason. Safe to call
	// before the connection opened and more than once.
	Close(code int, reason string) error
}

// -----------------------------------------------------------------------------
// IDialer opens wire connections. Dial must not block: open, message and close
// are reported through events.
// -----------------------------------------------------------------------------

type IDialer interface {
	Dial(url string, events ConnEvents) IConn
}
