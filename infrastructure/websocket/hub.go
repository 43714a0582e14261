package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/lobby/infrastructure/metrics"
)

// Hub tracks the open connections per room so they can be counted and closed
// together on shutdown.
type Hub struct {
	upgrader websocket.Upgrader
	metrics  metrics.Manager

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub accepts handshakes from allowOrigins, a comma separated list where
// "*" admits every origin.
func NewHub(allowOrigins string, m metrics.Manager) *Hub {
	if m == nil {
		m = metrics.NewNopManager()
	}
	origins := make(map[string]struct{})
	for _, origin := range strings.Split(allowOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins[origin] = struct{}{}
		}
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := origins["*"]; ok {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
		metrics: m,
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return h.upgrader.Upgrade(w, r, nil)
}

func (h *Hub) AddClient(cl *Client) {
	h.mu.Lock()
	clients, ok := h.rooms[cl.RoomID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.rooms[cl.RoomID] = clients
	}
	clients[cl] = struct{}{}
	h.mu.Unlock()

	h.metrics.DeltaUpDownCounter(context.Background(), metrics.ActiveWebsockets, 1)
}

func (h *Hub) RemoveClient(cl *Client) {
	h.mu.Lock()
	clients, ok := h.rooms[cl.RoomID]
	if ok {
		if _, exists := clients[cl]; exists {
			delete(clients, cl)
			if len(clients) == 0 {
				delete(h.rooms, cl.RoomID)
			}
		} else {
			ok = false
		}
	}
	h.mu.Unlock()

	cl.Close()
	if ok {
		h.metrics.DeltaUpDownCounter(context.Background(), metrics.ActiveWebsockets, -1)
	}
}

// MessageSent is a Client.WritePump callback counting delivered messages.
func (h *Hub) MessageSent(msg *WSMessage) {
	h.metrics.IncrementCounter(context.Background(), metrics.WebsocketMessagesSent, "type", msg.Type)
}

func (h *Hub) ClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Totals returns the number of open clients and of rooms that have one.
func (h *Hub) Totals() (clients, rooms int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, cs := range h.rooms {
		clients += len(cs)
	}
	return clients, len(h.rooms)
}

func (h *Hub) DisconnectAll() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, clients := range rooms {
		for cl := range clients {
			cl.Close()
			h.metrics.DeltaUpDownCounter(context.Background(), metrics.ActiveWebsockets, -1)
		}
	}
}
