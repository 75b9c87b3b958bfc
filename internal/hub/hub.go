package hub

import (
	"github.com/hansimuller/taekwon/internal/types"
)

// Hub is the registry of live channels, keyed by connection id. It is owned
// by a single goroutine (the tournament loop) and is not safe for concurrent use.
//
// The hub owns every outbox it holds: it is the only place an outbox is
// closed, which tells the channel's writer to hang up.
type Hub struct {
	conns   map[string]chan<- types.ServerMessage
	dropped []string
}

func New() *Hub {
	return &Hub{conns: make(map[string]chan<- types.ServerMessage)}
}

func (h *Hub) Add(id string, outbox chan<- types.ServerMessage) {
	if old, ok := h.conns[id]; ok {
		close(old)
	}
	h.conns[id] = outbox
}

func (h *Hub) Has(id string) bool {
	_, ok := h.conns[id]
	return ok
}

func (h *Hub) Len() int { return len(h.conns) }

// Remove forgets id and closes its outbox. Removing an unknown id is a no-op.
func (h *Hub) Remove(id string) {
	ch, ok := h.conns[id]
	if !ok {
		return
	}
	close(ch)
	delete(h.conns, id)
}

// Send queues msg for id without blocking. A full outbox means the client is
// too slow to keep up: it is dropped and reported by Dropped.
func (h *Hub) Send(id string, msg types.ServerMessage) bool {
	ch, ok := h.conns[id]
	if !ok {
		return false
	}
	select {
	case ch <- msg:
		return true
	default:
		close(ch)
		delete(h.conns, id)
		h.dropped = append(h.dropped, id)
		return false
	}
}

func (h *Hub) Broadcast(msg types.ServerMessage) {
	for id := range h.conns {
		h.Send(id, msg)
	}
}

// Dropped returns the ids dropped by Send since the previous call.
func (h *Hub) Dropped() []string {
	out := h.dropped
	h.dropped = nil
	return out
}

func (h *Hub) CloseAll() {
	for id, ch := range h.conns {
		close(ch)
		delete(h.conns, id)
	}
}
