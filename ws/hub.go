package ws

import (
	"sync"
)

// Hub tracks open notification sockets per user.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*Client]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uint]map[*Client]struct{})}
}

// Register adds c. It returns false once the hub is closed.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	return true
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cs := h.clients[c.userID]
	if _, ok := cs[c]; !ok {
		return
	}
	delete(cs, c)
	if len(cs) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
}

// SendToUser queues msg on every socket of userID and returns how many
// sockets accepted it. Sockets with a full buffer are skipped.
func (h *Hub) SendToUser(userID uint, msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- msg:
			n++
		default:
		}
	}
	return n
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, cs := range h.clients {
		n += len(cs)
	}
	return n
}

// Close closes every send channel, which makes each WritePump send a
// close frame and exit.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for uid, cs := range h.clients {
		for c := range cs {
			close(c.send)
		}
		delete(h.clients, uid)
	}
}
