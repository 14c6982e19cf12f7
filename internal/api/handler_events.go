package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"luggage-locker-backend/internal/events"
)

// clientBuffer is how many events may queue for one slow client before it
// is dropped.
const clientBuffer = 32

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans change events out to connected websocket clients so dashboards
// refresh without polling.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*wsClient]struct{}
}

// NewHub creates a hub. An empty allowedOrigins accepts any origin.
func NewHub(allowedOrigins []string) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
		clients:  make(map[*wsClient]struct{}),
	}
}

// SetAllowedOrigins replaces the origin check. Call it before serving.
func (h *Hub) SetAllowedOrigins(origins []string) {
	h.upgrader.CheckOrigin = originChecker(origins)
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(allowed) == 0 || allowed["*"] || origin == "" || allowed[origin]
	}
}

// HandleEvent broadcasts e to every client. It never blocks: a client whose
// buffer is full is disconnected.
func (h *Hub) HandleEvent(e events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("Failed to encode %s event: %v", e.Kind, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ServeWS upgrades the request and streams events until the client leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	h.register(client)

	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()

	// Keep reading so control frames are handled; any error means the client
	// is gone.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(client)
}

// StreamEvents handles GET /api/events.
func (h *Handler) StreamEvents(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}
