package hub

import (
	"github.com/devconnect/realtime/src/types"
)

// ConnectedHandles returns the handles of all live connections, including
// anonymous ones.
func (h *Hub) ConnectedHandles() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.clients))
	for handle := range h.clients {
		out = append(out, handle)
	}
	return out
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientInfo returns metadata for a connected handle, or nil.
func (h *Hub) ClientInfo(handle string) *types.ClientInfo {
	h.mu.RLock()
	c, ok := h.clients[handle]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	info := c.Info()
	return &info
}

// RoomCounts returns room ids with their member counts.
func (h *Hub) RoomCounts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.rooms))
	for room, members := range h.rooms {
		out[room] = len(members)
	}
	return out
}
