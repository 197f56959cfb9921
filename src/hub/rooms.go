package hub

import (
	"github.com/devconnect/realtime/src/types"
)

// JoinRoom adds a connection to a room, creating the room on first join.
// Joining twice is a no-op. Membership is keyed by connection handle, so a
// user with two tabs occupies two independent slots. Returns false if the
// handle is not connected.
func (h *Hub) JoinRoom(room, handle string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[handle]
	if !ok {
		return false
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]bool)
	}
	h.rooms[room][handle] = true
	c.addRoom(room)
	return true
}

// LeaveRoom removes a connection from a room; no error if absent. The room
// entry is evicted once its last member leaves, so abandoned UUID-keyed
// rooms do not accumulate.
func (h *Hub) LeaveRoom(room, handle string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, handle)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	if c, ok := h.clients[handle]; ok {
		c.removeRoom(room)
	}
}

// MembersExcept returns the handles of all room members other than the
// given sender — the delivery set for a broadcast.
func (h *Hub) MembersExcept(room, sender string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[room]
	out := make([]string, 0, len(members))
	for handle := range members {
		if handle != sender {
			out = append(out, handle)
		}
	}
	return out
}

// BroadcastToRoom delivers env to every room member except the sender, one
// independent best-effort send per member. A full queue on one member never
// blocks the others; an unknown or empty room is a no-op. The envelope is
// also forwarded to sibling instances when a bridge is attached.
func (h *Hub) BroadcastToRoom(room, sender string, env types.Envelope) {
	env.Room = room
	h.publishToBridge(env)
	h.broadcastLocal(room, sender, env)
}

func (h *Hub) broadcastLocal(room, exclude string, env types.Envelope) {
	h.mu.RLock()
	members := h.rooms[room]
	targets := make([]*Client, 0, len(members))
	for handle := range members {
		if handle == exclude {
			continue
		}
		if c, ok := h.clients[handle]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(env) {
			h.logger.Warn().
				Str("handle", c.handle).
				Str("room", room).
				Str("event", string(env.Event)).
				Msg("send buffer full, dropping")
		}
	}
}

// SendToClient forwards env directly to one connection handle, bypassing
// room membership entirely. An unknown target is silently dropped; the
// false return is for callers that care (the sender's own negotiation
// timeout is the user-visible detection mechanism).
func (h *Hub) SendToClient(handle string, env types.Envelope) bool {
	h.mu.RLock()
	c, ok := h.clients[handle]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.enqueue(env)
}

func (h *Hub) publishToBridge(env types.Envelope) {
	h.mu.RLock()
	b := h.bridge
	h.mu.RUnlock()

	if b == nil || !b.Available() {
		return
	}
	if err := b.Publish(env); err != nil {
		h.logger.Error().Err(err).Msg("bridge publish failed")
	}
}
