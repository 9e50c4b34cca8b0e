package transport

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"bot-mirror/src/interfaces"
	"bot-mirror/src/logger"

	"github.com/gorilla/websocket"
)

const defaultHandshakeTimeout = 10 * time.Second

// -----------------------------------------------------------------------------
// WSDialer opens stream connections with gorilla/websocket.
// -----------------------------------------------------------------------------

type WSDialer struct {
	dialer *websocket.Dialer
	header http.Header
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewWSDialer(handshakeTimeout time.Duration, userAgent string, log *logger.Logger) *WSDialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	if log == nil {
		log = logger.NewNop("Transport")
	}
	header := http.Header{}
	if userAgent != "" {
		header.Set("User-Agent", userAgent)
	}
	return &WSDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  1024,
		},
		header: header,
		logger: log,
	}
}

// -----------------------------------------------------------------------------

// SetProxy routes the handshake through proxy instead of the environment.
func (d *WSDialer) SetProxy(proxy func(*http.Request) (*url.URL, error)) {
	if proxy != nil {
		d.dialer.Proxy = proxy
	}
}

// -----------------------------------------------------------------------------

// Dial returns immediately; the handshake runs on its own goroutine.
func (d *WSDialer) Dial(url string, events interfaces.ConnEvents) interfaces.IConn {
	ctx, cancel := context.WithCancel(context.Background())
	c := newWSConn(events, cancel, d.logger)
	go c.run(ctx, d.dialer, url, d.header.Clone())
	return c
}
