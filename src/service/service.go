// Package service is the boundary the REST/business layer calls into. It
// never blocks on peer I/O and never queues: a false delivery result means
// the caller's persisted notification record stays the system of record.
package service

import (
	"fmt"
	"time"

	"github.com/devconnect/realtime/src/hub"
	"github.com/devconnect/realtime/src/types"
	"github.com/rs/zerolog"
)

// Service provides the high-level real-time API.
type Service struct {
	hub    *hub.Hub
	logger zerolog.Logger
}

// New creates a Service backed by the given hub.
func New(h *hub.Hub, logger zerolog.Logger) *Service {
	return &Service{hub: h, logger: logger}
}

// Hub returns the underlying hub.
func (s *Service) Hub() *hub.Hub { return s.hub }

// IsOnline reports whether an identity has a live registered connection.
func (s *Service) IsOnline(id types.Identity) bool {
	_, ok := s.hub.LookupIdentity(id)
	return ok
}

// PushIfOnline delivers an event directly to the identity's live connection
// if there is one. Returns true only if the event was handed to the
// connection's outbound queue; false means offline (or queue full) and the
// caller's own persistent notification will be seen on next login.
func (s *Service) PushIfOnline(id types.Identity, event types.EventKind, data map[string]any) bool {
	handle, ok := s.hub.LookupIdentity(id)
	if !ok {
		return false
	}
	delivered := s.hub.SendToClient(handle, types.Envelope{
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
	})
	s.logger.Debug().
		Str("identity", string(id)).
		Str("event", string(event)).
		Bool("delivered", delivered).
		Msg("notification push")
	return delivered
}

// OnlineIdentities returns the current presence set.
func (s *Service) OnlineIdentities() []types.Identity {
	return s.hub.OnlineIdentities()
}

// ClientCount returns the number of live connections.
func (s *Service) ClientCount() int {
	return s.hub.ClientCount()
}

// Rooms returns active room ids with member counts.
func (s *Service) Rooms() map[string]int {
	return s.hub.RoomCounts()
}

// ClientInfo returns metadata for a connected handle, or an error.
func (s *Service) ClientInfo(handle string) (*types.ClientInfo, error) {
	info := s.hub.ClientInfo(handle)
	if info == nil {
		return nil, fmt.Errorf("connection %s not found", handle)
	}
	return info, nil
}
