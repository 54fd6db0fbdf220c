package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lfarias/mensageiro/internal/backend"
	"github.com/lfarias/mensageiro/internal/models"
)

// feed fans auth and presence events out to every connected client.
// Clients filter for the events they care about.
type feed struct {
	mu      sync.Mutex
	clients map[*feedClient]struct{}
	metrics *metrics
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newFeed(m *metrics) *feed {
	return &feed{
		clients: make(map[*feedClient]struct{}),
		metrics: m,
	}
}

func (f *feed) add(c *feedClient) {
	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()
	if f.metrics != nil {
		f.metrics.wsConns.Inc()
	}
}

func (f *feed) remove(c *feedClient) {
	f.mu.Lock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
		if f.metrics != nil {
			f.metrics.wsConns.Dec()
		}
	}
	f.mu.Unlock()
}

// broadcast queues an event for every client; a client that cannot
// keep up is dropped.
func (f *feed) broadcast(ev backend.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error("encoding event: %v", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- payload:
		default:
			delete(f.clients, c)
			close(c.send)
			if f.metrics != nil {
				f.metrics.wsConns.Dec()
			}
		}
	}
}

func (f *feed) signedOut(userID uuid.UUID) {
	f.broadcast(backend.Event{Type: backend.EventSignedOut, UserID: userID})
}

func (f *feed) presence(userID uuid.UUID, status models.PresenceStatus) {
	f.broadcast(backend.Event{Type: backend.EventPresence, UserID: userID, Status: status})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleRealtime upgrades an authenticated request onto the feed. The
// token rides in the query string because browsers cannot set headers
// on websocket dials.
func (s *Server) handleRealtime(c *gin.Context) {
	token := c.Query("token")
	if _, err := s.parseToken(token); err != nil {
		c.JSON(http.StatusUnauthorized, apiError("unauthorized", "Invalid token"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed: %v", err)
		return
	}

	client := &feedClient{conn: conn, send: make(chan []byte, 16)}
	s.feed.add(client)

	go client.writePump()
	go func() {
		defer s.feed.remove(client)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (c *feedClient) writePump() {
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
