// Package interview implements the 1:1 video-call namespace: interview-room
// membership, WebRTC negotiation relayed peer to peer, screen-share notices,
// in-call chat, shared code and whiteboard updates.
package interview

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

// Register wires the interview event catalog onto the hub.
func Register(h *hub.Hub, logger zerolog.Logger) {
	s := &handlers{
		hub:    h,
		logger: logger.With().Str("component", "interview").Logger(),
	}
	h.RegisterHandler(types.NamespaceInterview, types.EventJoinRoom, s.joinRoom)
	h.RegisterHandler(types.NamespaceInterview, types.EventOffer, s.relay(types.EventOffer))
	h.RegisterHandler(types.NamespaceInterview, types.EventAnswer, s.relay(types.EventAnswer))
	h.RegisterHandler(types.NamespaceInterview, types.EventICECandidate, s.relay(types.EventICECandidate))
	h.RegisterHandler(types.NamespaceInterview, types.EventStartScreenShare, s.screenShare(types.EventScreenShareStarted))
	h.RegisterHandler(types.NamespaceInterview, types.EventStopScreenShare, s.screenShare(types.EventScreenShareStopped))
	h.RegisterHandler(types.NamespaceInterview, types.EventSendMessage, s.sendMessage)
	h.RegisterHandler(types.NamespaceInterview, types.EventCodeChange, s.codeChange)
	h.RegisterHandler(types.NamespaceInterview, types.EventWhiteboardDraw, s.whiteboardDraw)
	h.RegisterHandler(types.NamespaceInterview, types.EventLeaveRoom, s.leaveRoom)
}

func (s *handlers) joinRoom(sender string, env types.Envelope) error {
	if env.Room == "" {
		return fmt.Errorf("join-room: missing room")
	}
	identity, _ := env.Data["identity"].(string)
	displayName, _ := env.Data["displayName"].(string)

	// Interview connections carry no handshake identity; it arrives here.
	if identity != "" {
		s.hub.BindIdentity(types.Identity(identity), sender)
	}
	if !s.hub.JoinRoom(env.Room, sender) {
		return fmt.Errorf("join-room: unknown connection %s", sender)
	}
	s.logger.Debug().Str("handle", sender).Str("room", env.Room).Msg("joined interview room")

	s.hub.BroadcastToRoom(env.Room, sender, types.Envelope{
		Event: types.EventUserJoined,
		Room:  env.Room,
		From:  sender,
		Data: map[string]any{
			"identity":         identity,
			"connectionHandle": sender,
			"displayName":      displayName,
		},
		Timestamp: env.Timestamp,
	})
	return nil
}

// relay forwards a negotiation envelope to exactly the target connection,
// bypassing room membership. An unknown target is dropped silently; the
// initiating client detects the stall through its own negotiation timeout.
func (s *handlers) relay(kind types.EventKind) types.Handler {
	return func(sender string, env types.Envelope) error {
		if env.Target == "" {
			return fmt.Errorf("%s: missing target", kind)
		}
		if len(env.Data) == 0 {
			return fmt.Errorf("%s: missing payload", kind)
		}

		delivered := s.hub.SendToClient(env.Target, types.Envelope{
			Event: kind,
			Room:  env.Room,
			From:  sender,
			Data: map[string]any{
				"data":       env.Data,
				"fromHandle": sender,
			},
			Timestamp: env.Timestamp,
		})
		if !delivered {
			s.logger.Debug().
				Str("event", string(kind)).
				Str("target", env.Target).
				Msg("relay target gone, dropped")
		}
		return nil
	}
}

func (s *handlers) screenShare(kind types.EventKind) types.Handler {
	return func(sender string, env types.Envelope) error {
		if env.Room == "" {
			return fmt.Errorf("%s: missing room", kind)
		}
		s.hub.BroadcastToRoom(env.Room, sender, types.Envelope{
			Event: kind,
			Room:  env.Room,
			From:  sender,
			Data: map[string]any{
				"fromHandle": sender,
			},
			Timestamp: env.Timestamp,
		})
		return nil
	}
}

func (s *handlers) sendMessage(sender string, env types.Envelope) error {
	if env.Room == "" {
		return fmt.Errorf("send-message: missing room")
	}
	text, ok := env.Data["text"].(string)
	if !ok {
		return fmt.Errorf("send-message: missing text field")
	}
	from, _ := env.Data["sender"].(string)

	s.hub.BroadcastToRoom(env.Room, sender, types.Envelope{
		Event: types.EventReceiveMessage,
		Room:  env.Room,
		From:  sender,
		Data: map[string]any{
			"text":      text,
			"sender":    from,
			"timestamp": env.Timestamp,
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
	language, _ := env.Data["language"].(string)

	s.hub.BroadcastToRoom(env.Room, sender, types.Envelope{
		Event: types.EventCodeUpdate,
		Room:  env.Room,
		From:  sender,
		Data: map[string]any{
			"code":     code,
			"language": language,
		},
		Timestamp: env.Timestamp,
	})
	return nil
}

func (s *handlers) whiteboardDraw(sender string, env types.Envelope) error {
	if env.Room == "" {
		return fmt.Errorf("whiteboard-draw: missing room")
	}
	stroke, ok := env.Data["strokeData"]
	if !ok {
		return fmt.Errorf("whiteboard-draw: missing strokeData field")
	}

	s.hub.BroadcastToRoom(env.Room, sender, types.Envelope{
		Event: types.EventWhiteboardUpdate,
		Room:  env.Room,
		From:  sender,
		Data: map[string]any{
			"strokeData": stroke,
		},
		Timestamp: env.Timestamp,
	})
	return nil
}

func (s *handlers) leaveRoom(sender string, env types.Envelope) error {
	if env.Room == "" {
		return fmt.Errorf("leave-room: missing room")
	}
	identity, _ := env.Data["identity"].(string)
	if identity == "" {
		if id, ok := s.hub.IdentityOf(sender); ok {
			identity = string(id)
		}
	}

	s.hub.LeaveRoom(env.Room, sender)
	s.hub.BroadcastToRoom(env.Room, sender, types.Envelope{
		Event: types.EventUserLeft,
		Room:  env.Room,
		From:  sender,
		Data: map[string]any{
			"identity":         identity,
			"connectionHandle": sender,
		},
		Timestamp: env.Timestamp,
	})
	return nil
}
