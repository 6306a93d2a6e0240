package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ligun0805/baseminer/internal/app"
	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/metrics"
)

const writeWait = 10 * time.Second

// envelope is every message sent on /ws.
type envelope struct {
	Type    string   `json:"type"`
	Payload app.View `json:"payload"`
}

type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// hub pushes the view to every connected client. Changes are coalesced:
// many kicks between two pushes produce one push.
type hub struct {
	view    func() app.View
	log     *logging.Logger
	metrics metrics.Metrics
	kicks   chan struct{}

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newHub(view func() app.View, log *logging.Logger, m metrics.Metrics) *hub {
	return &hub{
		view:    view,
		log:     log,
		metrics: m,
		kicks:   make(chan struct{}, 1),
		clients: map[*wsClient]struct{}{},
	}
}

func (h *hub) kick() {
	select {
	case h.kicks <- struct{}{}:
	default:
	}
}

func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.kicks:
			if h.count() > 0 {
				h.broadcast(envelope{Type: "state", Payload: h.view()})
			}
		}
	}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetWSClients(n)
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetWSClients(n)
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) snapshot() []*wsClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *hub) send(c *wsClient, e envelope) {
	if err := c.writeJSON(e); err != nil {
		h.log.Debug("ws write failed", logging.Err(err))
		_ = c.conn.Close()
		h.remove(c)
	}
}

func (h *hub) broadcast(e envelope) {
	for _, c := range h.snapshot() {
		h.send(c, e)
	}
}

func (h *hub) closeAll() {
	for _, c := range h.snapshot() {
		_ = c.conn.Close()
		h.remove(c)
	}
}

// handleWS sends the current view, then pushes on every change. Anything the
// client sends is ignored; a read error ends the connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.ws.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", logging.Err(err))
		return
	}
	c := &wsClient{conn: conn}
	s.hub.add(c)
	defer func() {
		s.hub.remove(c)
		_ = conn.Close()
	}()

	s.hub.send(c, envelope{Type: "state", Payload: s.backend.View()})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
