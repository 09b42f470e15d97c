package server

import (
	"log/slog"
	"sync"

	"showdown-arena/parser"
)

// Hub routes outbound events to live connections by id.
type Hub struct {
	log *slog.Logger

	mu    sync.RWMutex
	conns map[string]*conn
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{log: log, conns: make(map[string]*conn)}
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

// Send encodes the event and queues it on the connection. Events for unknown
// connections are dropped; a full queue closes the slow connection.
func (h *Hub) Send(connID, event string, payload any) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		h.log.Debug("drop event for closed connection", "conn", connID, "event", event)
		return
	}
	frame, err := parser.Encode(event, payload)
	if err != nil {
		h.log.Error("encode event", "event", event, "error", err)
		return
	}
	if err := c.enqueue(frame); err != nil {
		h.log.Warn("connection backpressure, closing", "conn", connID, "event", event)
		c.close()
	}
}

// Len is the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll closes every live connection. Their handlers then run the normal
// disconnect path.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.close()
	}
}
