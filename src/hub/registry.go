package hub

import (
	"time"

	"github.com/devconnect/realtime/src/types"
)

// BindIdentity maps an identity to the given connection handle,
// unconditionally displacing any prior mapping, and re-announces presence.
// Used by namespaces where the identity arrives in an event rather than at
// handshake time. Returns false if the handle is not connected.
func (h *Hub) BindIdentity(id types.Identity, handle string) bool {
	if id.Anonymous() {
		return false
	}
	h.mu.Lock()
	c, ok := h.clients[handle]
	if !ok {
		h.mu.Unlock()
		return false
	}
	h.identities[id] = handle
	h.mu.Unlock()

	c.setIdentity(id)
	h.announcePresence()
	return true
}

// LookupIdentity returns the connection handle currently registered for an
// identity. Absence is not an error; it means the identity is offline.
func (h *Hub) LookupIdentity(id types.Identity) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handle, ok := h.identities[id]
	return handle, ok
}

// IdentityOf returns the identity bound to a connection handle, if any.
func (h *Hub) IdentityOf(handle string) (types.Identity, bool) {
	h.mu.RLock()
	c, ok := h.clients[handle]
	h.mu.RUnlock()
	if !ok {
		return "", false
	}
	id := c.Identity()
	return id, !id.Anonymous()
}

// OnlineIdentities returns a snapshot of all currently registered
// identities — the presence set.
func (h *Hub) OnlineIdentities() []types.Identity {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]types.Identity, 0, len(h.identities))
	for id := range h.identities {
		out = append(out, id)
	}
	return out
}

// announcePresence pushes the full presence set to every connection. The
// push is eager and unacknowledged; a missed announce self-heals on the
// next change.
func (h *Hub) announcePresence() {
	ids := h.OnlineIdentities()
	users := make([]string, len(ids))
	for i, id := range ids {
		users[i] = string(id)
	}

	env := types.Envelope{
		Event:     types.EventOnlineUsers,
		Data:      map[string]any{"users": users},
		Timestamp: time.Now(),
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(env) {
			h.logger.Warn().Str("handle", c.handle).Msg("presence dropped, send buffer full")
		}
	}
}
