package server

import (
	"net/http"

	"bot-mirror/src/effects"
	"bot-mirror/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Store observer
// -----------------------------------------------------------------------------

// OnStateChanged runs on the writer's goroutine. It only raises a flag; the
// hub coalesces bursts into one snapshot push.
func (s *DashboardServer) OnStateChanged(version uint64) {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

// Alert forwards a played sound to every viewer. Never blocks.
func (s *DashboardServer) Alert(alert effects.Alert) {
	select {
	case s.alerts <- alert:
	default:
		s.Logger.Debug("Dropping alert %s, viewers are behind", alert.Name)
	}
}

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *DashboardServer) handleWebsockets() {
	var lastVersion uint64

	for {
		select {
		case <-s.quit:
			for client := range s.clients {
				s.drop(client)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.viewers.Store(int64(len(s.clients)))
			// Send full state on connect
			if frame, version, ok := s.snapshotFrame(); ok {
				client.send <- frame
				if version > lastVersion {
					lastVersion = version
				}
			}

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				s.drop(client)
			}

		case <-s.changed:
			frame, version, ok := s.snapshotFrame()
			if !ok || version <= lastVersion {
				continue
			}
			lastVersion = version
			s.broadcast(frame)

		case alert := <-s.alerts:
			frame, err := models.NewEnvelope(models.MsgPlaySound, alert.Name)
			if err != nil {
				continue
			}
			s.broadcast(frame)
		}
	}
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) broadcast(frame []byte) {
	for client := range s.clients {
		select {
		case client.send <- frame:
		default:
			// Client too slow, disconnect to prevent Hub blocking
			s.drop(client)
		}
	}
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) drop(client *Client) {
	delete(s.clients, client)
	close(client.send)
	s.viewers.Store(int64(len(s.clients)))
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) snapshotFrame() ([]byte, uint64, bool) {
	snap := s.store.Snapshot()
	frame, err := models.NewEnvelope(models.MsgSnapshot, snap)
	if err != nil {
		s.Logger.Error("Failed to encode snapshot: %v", err)
		return nil, 0, false
	}
	return frame, snap.Version, true
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan []byte, 64),
	}

	select {
	case s.register <- client:
	case <-s.quit:
		conn.Close()
		return
	}

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}
