package http

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Consumer is one connected local UI surface (badge, dropdown, full page).
type Consumer struct {
	send chan []byte
}

// Hub re-broadcasts push events and badge updates to every connected local
// consumer over SSE. All fan-out is in-process: the agent serves exactly one
// device.
type Hub struct {
	mu        sync.RWMutex
	consumers map[*Consumer]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{consumers: make(map[*Consumer]struct{})}
}

// Register adds a consumer with its buffered send channel.
func (h *Hub) Register(send chan []byte) *Consumer {
	c := &Consumer{send: send}
	h.mu.Lock()
	h.consumers[c] = struct{}{}
	h.mu.Unlock()

	log.Debug().Msg("local consumer connected")
	return c
}

// Unregister removes a consumer.
func (h *Hub) Unregister(c *Consumer) {
	h.mu.Lock()
	delete(h.consumers, c)
	h.mu.Unlock()

	log.Debug().Msg("local consumer disconnected")
}

// OnPushEvent satisfies the push listener contract: every backend push is
// forwarded verbatim to the local consumers.
func (h *Hub) OnPushEvent(payload []byte) {
	h.broadcast(buildSSEMessage("notification", payload))
}

// BroadcastBadge pushes a fresh unread count to all consumers.
func (h *Hub) BroadcastBadge(count int) {
	payload, _ := json.Marshal(map[string]int{"count": count})
	h.broadcast(buildSSEMessage("badge", payload))
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.consumers {
		select {
		case c.send <- msg:
		default:
			// consumer is slow or gone, skip
			log.Warn().Msg("local consumer send buffer full, skipping")
		}
	}
}

// ConnectedCount returns the number of connected consumers.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.consumers)
}

// buildSSEMessage formats an SSE data frame.
func buildSSEMessage(event string, payload []byte) []byte {
	buf := make([]byte, 0, len(event)+len(payload)+16)
	buf = append(buf, "event: "...)
	buf = append(buf, event...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, payload...)
	buf = append(buf, "\n\n"...)
	return buf
}
