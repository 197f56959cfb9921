package types

import "time"

// Namespace selects which event catalog a connection speaks.
type Namespace string

const (
	// NamespaceCollab is the default namespace: presence plus live
	// coding-session sync (code, cursor, language).
	NamespaceCollab Namespace = "collab"

	// NamespaceInterview carries 1:1 video-call signaling for interview
	// rooms: WebRTC negotiation, screen share, chat, whiteboard.
	NamespaceInterview Namespace = "interview"
)

// Identity is the user-level id a connection claims at handshake time.
// The zero value means the connection is anonymous and is never registered.
type Identity string

// Anonymous reports whether the identity is absent.
func (i Identity) Anonymous() bool { return i == "" }

// EventKind names one message type in a namespace's catalog.
type EventKind string

// Collab namespace, client to server.
const (
	EventJoinCodingSession  EventKind = "join-coding-session"
	EventLeaveCodingSession EventKind = "leave-coding-session"
	EventCodeChange         EventKind = "code-change"
	EventCursorPosition     EventKind = "cursor-position"
	EventLanguageChange     EventKind = "language-change"
)

// Collab namespace, server to clients.
const (
	EventOnlineUsers       EventKind = "getOnlineUsers"
	EventUserJoinedSession EventKind = "user-joined-session"
	EventUserLeftSession   EventKind = "user-left-session"
	EventCodeUpdate        EventKind = "code-update"
	EventCursorUpdate      EventKind = "cursor-update"
	EventLanguageUpdate    EventKind = "language-update"
)

// Interview namespace, client to server. EventCodeChange is shared with the
// collab catalog; dispatch is namespace-scoped so the payloads never mix.
const (
	EventJoinRoom         EventKind = "join-room"
	EventOffer            EventKind = "offer"
	EventAnswer           EventKind = "answer"
	EventICECandidate     EventKind = "ice-candidate"
	EventStartScreenShare EventKind = "start-screen-share"
	EventStopScreenShare  EventKind = "stop-screen-share"
	EventSendMessage      EventKind = "send-message"
	EventWhiteboardDraw   EventKind = "whiteboard-draw"
	EventLeaveRoom        EventKind = "leave-room"
)

// Interview namespace, server to clients. Offer, answer and ice-candidate
// are relayed under their client-side names with a {data, fromHandle}
// payload.
const (
	EventUserJoined         EventKind = "user-joined"
	EventScreenShareStarted EventKind = "screen-share-started"
	EventScreenShareStopped EventKind = "screen-share-stopped"
	EventReceiveMessage     EventKind = "receive-message"
	EventWhiteboardUpdate   EventKind = "whiteboard-update"
	EventUserLeft           EventKind = "user-left"
)

// Envelope is the wire format for every real-time message, in both
// directions. Room addresses a broadcast, Target a direct relay; From is
// stamped by the server with the sender's connection handle and is never
// trusted from the client.
type Envelope struct {
	Event     EventKind      `json:"event"`
	Room      string         `json:"room,omitempty"`
	Target    string         `json:"target,omitempty"`
	From      string         `json:"from,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Handler processes one inbound envelope from the named sender connection.
// Returning an error means the envelope was rejected (malformed or
// unroutable); it is logged and dropped, never surfaced to the sender.
type Handler func(senderHandle string, env Envelope) error

// ClientInfo holds metadata about a connected client.
type ClientInfo struct {
	Handle      string    `json:"handle"`
	Identity    Identity  `json:"identity,omitempty"`
	Namespace   Namespace `json:"namespace"`
	ConnectedAt time.Time `json:"connected_at"`
	Rooms       []string  `json:"rooms,omitempty"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Ping() error
	Close() error
}
