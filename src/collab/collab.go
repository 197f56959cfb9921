// Package collab implements the default namespace: presence plus live
// coding-session sync. All events are room-scoped broadcasts that exclude
// the sender.
package collab

import (
	"fmt"

	"github.com/devconnect/realtime/src/hub"
	"github.com/devconnect/realtime/src/types"
	"github.com/rs/zerolog"
)

type handlers struct {
	hub    *hub.Hub
	logger zerolog.Logger
}

// Register wires the collab event catalog onto the hub.
func Register(h *hub.Hub, logger zerolog.Logger) {
	s := &handlers{
		hub:    h,
		logger: logger.With().Str("component", "collab").Logger(),
	}
	h.RegisterHandler(types.NamespaceCollab, types.EventJoinCodingSession, s.joinSession)
	h.RegisterHandler(types.NamespaceCollab, types.EventLeaveCodingSession, s.leaveSession)
	h.RegisterHandler(types.NamespaceCollab, types.EventCodeChange, s.codeChange)
	h.RegisterHandler(types.NamespaceCollab, types.EventCursorPosition, s.cursorPosition)
	h.RegisterHandler(types.NamespaceCollab, types.EventLanguageChange, s.languageChange)
}

// senderIdentity resolves the user-level id for an event: the identity field
// the client sent if present, otherwise whatever the registry has bound to
// the connection.
func (s *handlers) senderIdentity(sender string, env types.Envelope) string {
	if v, ok := env.Data["identity"].(string); ok && v != "" {
		return v
	}
	if id, ok := s.hub.IdentityOf(sender); ok {
		return string(id)
	}
	return ""
}

func (s *handlers) joinSession(sender string, env types.Envelope) error {
	if env.Room == "" {
		return fmt.Errorf("join-coding-session: missing room")
	}
	if !s.hub.JoinRoom(env.Room, sender) {
		return fmt.Errorf("join-coding-session: unknown connection %s", sender)
	}
	s.logger.Debug().Str("handle", sender).Str("room", env.Room).Msg("joined coding session")

	s.hub.BroadcastToRoom(env.Room, sender, types.Envelope{
		Event: types.EventUserJoinedSession,
		Room:  env.Room,
		From:  sender,
		Data: map[string]any{
			"identity":         s.senderIdentity(sender, env),
			"connectionHandle": sender,
		},
		Timestamp: env.Timestamp,
	})
	return nil
}

func (s *handlers) leaveSession(sender string, env types.Envelope) error {
	if env.Room == "" {
		return fmt.Errorf("leave-coding-session: missing room")
	}
	s.hub.LeaveRoom(env.Room, sender)

	s.hub.BroadcastToRoom(env.Room, sender, types.Envelope{
		Event: types.EventUserLeftSession,
		Room:  env.Room,
		From:  sender,
		Data: map[string]any{
			"identity": s.senderIdentity(sender, env),
		},
		Timestamp: env.Timestamp,
	})
	return nil
}

func (s *handlers) codeChange(sender string, env types.Envelope) error {
	if env.Room == "" {
		return fmt.Errorf("code-change: missing room")
	}
	code, ok := env.Data["code"].(string)
	if !ok {
		return fmt.Errorf("code-change: missing code field")
	}

	s.hub.BroadcastToRoom(env.Room, sender, types.Envelope{
		Event: types.EventCodeUpdate,
		Room:  env.Room,
		From:  sender,
		Data: map[string]any{
			"code":     code,
			"identity": s.senderIdentity(sender, env),
		},
		Timestamp: env.Timestamp,
	})
	return nil
}

func (s *handlers) cursorPosition(sender string, env types.Envelope) error {
	if env.Room == "" {
		return fmt.Errorf("cursor-position: missing room")
	}
	position, ok := env.Data["position"]
	if !ok {
		return fmt.Errorf("cursor-position: missing position field")
	}

	s.hub.BroadcastToRoom(env.Room, sender, types.Envelope{
		Event: types.EventCursorUpdate,
		Room:  env.Room,
		From:  sender,
		Data: map[string]any{
			"position": position,
			"identity": s.senderIdentity(sender, env),
		},
		Timestamp: env.Timestamp,
	})
	return nil
}

func (s *handlers) languageChange(sender string, env types.Envelope) error {
	if env.Room == "" {
		return fmt.Errorf("language-change: missing room")
	}
	language, ok := env.Data["language"].(string)
	if !ok || language == "" {
		return fmt.Errorf("language-change: missing language field")
	}

	s.hub.BroadcastToRoom(env.Room, sender, types.Envelope{
		Event: types.EventLanguageUpdate,
		Room:  env.Room,
		From:  sender,
		Data: map[string]any{
			"language": language,
			"identity": s.senderIdentity(sender, env),
		},
		Timestamp: env.Timestamp,
	})
	return nil
}
