// Package websocket pushes change notices to connected household members.
// Clients receive only the entity, action and id and refetch over REST.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

type Message struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     int64  `json:"id,omitempty"`
}

// Event is a change to publish. When Recipients is non-empty only those
// users' connections receive it.
type Event struct {
	Entity     string
	Action     string
	ID         int64
	Recipients []int64
}

func (e Event) message() Message {
	return Message{Type: e.Entity + "_" + e.Action, Entity: e.Entity, Action: e.Action, ID: e.ID}
}

// Hub indexes live connections by user so targeted events skip everyone
// else. A user may hold several connections.
type Hub struct {
	mu     sync.RWMutex
	byUser map[int64]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		byUser: make(map[int64]map[*Client]struct{}),
		logger: logger.With("component", "websocket"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.byUser[c.userID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.byUser[c.userID] = conns
	}
	conns[c] = struct{}{}
}

// Unregister removes c and closes its send channel. Calling it twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.byUser[c.userID]
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.byUser, c.userID)
	}
	close(c.send)
}

// Publish queues e on every matching connection without blocking. A client
// whose buffer is full misses the event.
func (h *Hub) Publish(e Event) {
	data, err := json.Marshal(e.message())
	if err != nil {
		h.logger.Error("marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(e.Recipients) == 0 {
		for _, conns := range h.byUser {
			h.enqueue(conns, data, e)
		}
		return
	}
	for _, id := range e.Recipients {
		h.enqueue(h.byUser[id], data, e)
	}
}

func (h *Hub) enqueue(conns map[*Client]struct{}, data []byte, e Event) {
	for c := range conns {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("client buffer full, event dropped", "user_id", c.userID, "entity", e.Entity, "action", e.Action)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.byUser {
		n += len(conns)
	}
	return n
}

// Online reports whether userID has at least one open connection.
func (h *Hub) Online(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}
