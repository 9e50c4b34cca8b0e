package connection

import (
	"errors"
	"sync"

	"bot-mirror/src/interfaces"
)

type closeCall struct {
	code   int
	reason string
}

type fakeConn struct {
	mu     sync.Mutex
	events interfaces.ConnEvents
	sent     [][]byte
	closes   []closeCall
	closeErr error
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.closes) > 0 {
		return errors.New("closed")
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes = append(c.closes, closeCall{code: code, reason: reason})
	return c.closeErr
}

func (c *fakeConn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *fakeConn) FailCloses(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeErr = err
}

func (c *fakeConn) Closes() []closeCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]closeCall(nil), c.closes...)
}

// server side helpers
func (c *fakeConn) Open() { c.events.OnOpen() }
func (c *fakeConn) Deliver(frame string) { c.events.OnMessage([]byte(frame)) }
func (c *fakeConn) Drop(code int, reason string) { c.events.OnClose(code, reason) }
func (c *fakeConn) Fail(err error) { c.events.OnError(err) }

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) Dial(url string, events interfaces.ConnEvents) interfaces.IConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &fakeConn{events: events}
	d.conns = append(d.conns, c)
	return c
}

func (d *fakeDialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) Last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type fakeSyncer struct {
	runs      int
	lastCheck func() bool
}

func (f *fakeSyncer) Run(isCurrent func() bool) {
	f.runs++
	f.lastCheck = isCurrent
}
