package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"bot-mirror/src/helpers"
	"bot-mirror/src/interfaces"
	"bot-mirror/src/logger"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	closeGrace     = 1 * time.Second
	maxMessageSize = 1024 * 1024 // 1MB for chart payloads
	sendBuffer     = 256
)

// ErrConnClosed is returned by Send once the connection is closing.
var ErrConnClosed = errors.New("connection closed")

type closeRequest struct {
	code   int
	reason string
}

// -----------------------------------------------------------------------------
// wsConn is one client connection. It dials in the background and reports
// every lifecycle change through its events; OnClose fires exactly once.
// -----------------------------------------------------------------------------

type wsConn struct {
	events interfaces.ConnEvents
	logger *logger.Logger

	send     chan []byte
	closeReq chan closeRequest
	closed   chan struct{}
	cancel   context.CancelFunc

	mu        sync.Mutex
	opened    bool
	closing   bool
	requested *closeRequest
	closeOnce sync.Once
}

// -----------------------------------------------------------------------------

func newWSConn(events interfaces.ConnEvents, cancel context.CancelFunc, log *logger.Logger) *wsConn {
	return &wsConn{
		events:   events,
		logger:   log,
		send:     make(chan []byte, sendBuffer),
		closeReq: make(chan closeRequest, 1),
		closed:   make(chan struct{}),
		cancel:   cancel,
	}
}

// -----------------------------------------------------------------------------

func (c *wsConn) run(ctx context.Context, dialer *websocket.Dialer, url string, header http.Header) {
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if req := c.requestedClose(); req != nil {
			c.emitClose(req.code, req.reason)
			return
		}
		c.emitError(helpers.NewTransportError("dial "+url, err))
		c.emitClose(websocket.CloseAbnormalClosure, err.Error())
		return
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		_ = conn.Close()
		req := c.requestedClose()
		c.emitClose(req.code, req.reason)
		return
	}
	c.opened = true
	c.mu.Unlock()

	if c.events.OnOpen != nil {
		c.events.OnOpen()
	}

	readDone := make(chan struct{})
	go c.writePump(conn, readDone)
	c.readPump(conn)
	close(readDone)
}

// -----------------------------------------------------------------------------
// readPump - delivers frames in arrival order until the connection ends
// -----------------------------------------------------------------------------

func (c *wsConn) readPump(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			code, reason := closeDetails(err)
			if req := c.requestedClose(); req != nil {
				code, reason = req.code, req.reason
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.emitError(helpers.NewTransportError("read", err))
			}
			c.emitClose(code, reason)
			return
		}
		if c.events.OnMessage != nil {
			c.events.OnMessage(message)
		}
	}
}

// -----------------------------------------------------------------------------
// writePump - sends queued frames and the close handshake
// -----------------------------------------------------------------------------

func (c *wsConn) writePump(conn *websocket.Conn, readDone <-chan struct{}) {
	for {
		select {
		case message := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warning("Write error: %v", err)
				_ = conn.Close()
				return
			}

		case req := <-c.closeReq:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			msg := websocket.FormatCloseMessage(req.code, req.reason)
			if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
				_ = conn.Close()
				return
			}
			// wait for the peer to echo the close, then force it
			select {
			case <-readDone:
			case <-time.After(closeGrace):
				_ = conn.Close()
			}
			return

		case <-readDone:
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	closing := c.closing
	opened := c.opened
	c.mu.Unlock()

	if closing {
		return ErrConnClosed
	}
	if !opened {
		return helpers.NewTransportError("send before open", nil)
	}

	select {
	case <-c.closed:
		return ErrConnClosed
	case c.send <- data:
		return nil
	default:
		return helpers.NewTransportError("send buffer full", nil)
	}
}

// -----------------------------------------------------------------------------

func (c *wsConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return nil
	}
	c.closing = true
	c.requested = &closeRequest{code: code, reason: reason}

	if !c.opened {
		c.cancel()
		return nil
	}
	c.closeReq <- *c.requested
	return nil
}

// -----------------------------------------------------------------------------

func (c *wsConn) requestedClose() *closeRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requested
}

// -----------------------------------------------------------------------------

func (c *wsConn) emitError(err error) {
	if c.events.OnError != nil {
		c.events.OnError(err)
	}
}

// -----------------------------------------------------------------------------

func (c *wsConn) emitClose(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.cancel()
		if c.events.OnClose != nil {
			c.events.OnClose(code, reason)
		}
	})
}

// -----------------------------------------------------------------------------

func closeDetails(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return websocket.CloseAbnormalClosure, err.Error()
}
