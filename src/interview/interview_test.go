package interview_test

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/devconnect/realtime/src/hub"
	"github.com/devconnect/realtime/src/interview"
	"github.com/devconnect/realtime/src/types"
)

type mockConn struct {
	mu       sync.Mutex
	written  []types.Envelope
	readCh   chan types.Envelope
	closed   bool
	closedCh chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		readCh:   make(chan types.Envelope, 16),
		closedCh: make(chan struct{}),
	}
}

func (m *mockConn) WriteJSON(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if env, ok := v.(types.Envelope); ok {
		m.written = append(m.written, env)
	}
	return nil
}

func (m *mockConn) ReadJSON(v any) error {
	select {
	case env := <-m.readCh:
		if ptr, ok := v.(*types.Envelope); ok {
			*ptr = env
		}
		return nil
	case <-m.closedCh:
		return &closeError{}
	}
}

func (m *mockConn) Ping() error { return nil }

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return nil
}

func (m *mockConn) eventsOf(kind types.EventKind) []types.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Envelope
	for _, env := range m.written {
		if env.Event == kind {
			out = append(out, env)
		}
	}
	return out
}

type closeError struct{}

func (e *closeError) Error() string { return "connection closed" }

func newInterviewHub(t *testing.T) *hub.Hub {
	t.Helper()
	h := hub.New(zerolog.Nop(), hub.Options{})
	interview.Register(h, zerolog.Nop())
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

// dial connects an interview-namespace client. Identity is bound later via
// join-room, matching the real handshake.
func dial(t *testing.T, h *hub.Hub, handle string) *mockConn {
	t.Helper()
	conn := newMockConn()
	client := hub.NewClient(handle, "", types.NamespaceInterview, conn, h)
	h.Register(client)
	go client.WritePump()
	go client.ReadPump()
	time.Sleep(20 * time.Millisecond)
	return conn
}

func settle() { time.Sleep(50 * time.Millisecond) }

func joinRoom(conn *mockConn, room, identity, name string) {
	conn.readCh <- types.Envelope{
		Event: types.EventJoinRoom,
		Room:  room,
		Data:  map[string]any{"identity": identity, "displayName": name},
	}
}

func TestJoinRoomAnnouncesAndBindsIdentity(t *testing.T) {
	h := newInterviewHub(t)

	conn1 := dial(t, h, "h1")
	conn2 := dial(t, h, "h2")

	joinRoom(conn1, "room-42", "u1", "Alice")
	settle()
	joinRoom(conn2, "room-42", "u2", "Bob")
	settle()

	joined := conn1.eventsOf(types.EventUserJoined)
	if len(joined) != 1 {
		t.Fatalf("u1 join notices: got %d, want 1", len(joined))
	}
	data := joined[0].Data
	if data["identity"] != "u2" || data["connectionHandle"] != "h2" || data["displayName"] != "Bob" {
		t.Errorf("join notice data: got %v", data)
	}
	// The joiner never hears its own announcement.
	if got := conn2.eventsOf(types.EventUserJoined); len(got) != 0 {
		t.Errorf("joiner received own announcement: %d", len(got))
	}

	// join-room also registers the identity.
	if handle, ok := h.LookupIdentity("u2"); !ok || handle != "h2" {
		t.Errorf("identity u2: got (%q, %v), want (h2, true)", handle, ok)
	}
}

func TestOfferRelayedToTargetOnly(t *testing.T) {
	h := newInterviewHub(t)

	conn1 := dial(t, h, "h1")
	conn2 := dial(t, h, "h2")
	conn3 := dial(t, h, "h3")

	joinRoom(conn1, "room-42", "u1", "Alice")
	joinRoom(conn2, "room-42", "u2", "Bob")
	joinRoom(conn3, "room-42", "u3", "Carol")
	settle()

	conn1.readCh <- types.Envelope{
		Event:  types.EventOffer,
		Room:   "room-42",
		Target: "h2",
		Data:   map[string]any{"sdp": "v=0..."},
	}
	settle()

	offers := conn2.eventsOf(types.EventOffer)
	if len(offers) != 1 {
		t.Fatalf("target offers: got %d, want 1", len(offers))
	}
	if offers[0].Data["fromHandle"] != "h1" {
		t.Errorf("fromHandle: got %v, want h1", offers[0].Data["fromHandle"])
	}
	payload, ok := offers[0].Data["data"].(map[string]any)
	if !ok || payload["sdp"] != "v=0..." {
		t.Errorf("offer payload: got %v", offers[0].Data["data"])
	}

	// Room membership is irrelevant to a direct relay.
	if got := conn3.eventsOf(types.EventOffer); len(got) != 0 {
		t.Errorf("bystander received offer: %d", len(got))
	}
	if got := conn1.eventsOf(types.EventOffer); len(got) != 0 {
		t.Errorf("sender received own offer: %d", len(got))
	}
}

func TestAnswerAndCandidateToUnknownTargetDropped(t *testing.T) {
	h := newInterviewHub(t)

	conn1 := dial(t, h, "h1")
	joinRoom(conn1, "room-42", "u1", "Alice")
	settle()

	// Target vanished: silently dropped, sender gets nothing back.
	conn1.readCh <- types.Envelope{
		Event:  types.EventAnswer,
		Room:   "room-42",
		Target: "gone",
		Data:   map[string]any{"sdp": "v=0..."},
	}
	conn1.readCh <- types.Envelope{
		Event:  types.EventICECandidate,
		Room:   "room-42",
		Target: "gone",
		Data:   map[string]any{"candidate": "candidate:1"},
	}
	settle()

	if got := conn1.eventsOf(types.EventAnswer); len(got) != 0 {
		t.Errorf("sender received %d answers, want 0", len(got))
	}
	if got := conn1.eventsOf(types.EventICECandidate); len(got) != 0 {
		t.Errorf("sender received %d candidates, want 0", len(got))
	}
}

func TestScreenShareNotices(t *testing.T) {
	h := newInterviewHub(t)

	conn1 := dial(t, h, "h1")
	conn2 := dial(t, h, "h2")

	joinRoom(conn1, "room-42", "u1", "Alice")
	joinRoom(conn2, "room-42", "u2", "Bob")
	settle()

	conn1.readCh <- types.Envelope{Event: types.EventStartScreenShare, Room: "room-42"}
	settle()
	conn1.readCh <- types.Envelope{Event: types.EventStopScreenShare, Room: "room-42"}
	settle()

	started := conn2.eventsOf(types.EventScreenShareStarted)
	if len(started) != 1 || started[0].Data["fromHandle"] != "h1" {
		t.Errorf("screen-share-started: got %v", started)
	}
	stopped := conn2.eventsOf(types.EventScreenShareStopped)
	if len(stopped) != 1 || stopped[0].Data["fromHandle"] != "h1" {
		t.Errorf("screen-share-stopped: got %v", stopped)
	}
	if got := conn1.eventsOf(types.EventScreenShareStarted); len(got) != 0 {
		t.Error("sharer received own start notice")
	}
}

func TestChatCodeAndWhiteboard(t *testing.T) {
	h := newInterviewHub(t)

	conn1 := dial(t, h, "h1")
	conn2 := dial(t, h, "h2")

	joinRoom(conn1, "room-42", "u1", "Alice")
	joinRoom(conn2, "room-42", "u2", "Bob")
	settle()

	conn1.readCh <- types.Envelope{
		Event: types.EventSendMessage,
		Room:  "room-42",
		Data:  map[string]any{"text": "hello", "sender": "Alice"},
	}
	conn1.readCh <- types.Envelope{
		Event: types.EventCodeChange,
		Room:  "room-42",
		Data:  map[string]any{"code": "func main() {}", "language": "go"},
	}
	conn1.readCh <- types.Envelope{
		Event: types.EventWhiteboardDraw,
		Room:  "room-42",
		Data:  map[string]any{"strokeData": []any{1.0, 2.0, 3.0}},
	}
	settle()

	msgs := conn2.eventsOf(types.EventReceiveMessage)
	if len(msgs) != 1 || msgs[0].Data["text"] != "hello" || msgs[0].Data["sender"] != "Alice" {
		t.Errorf("chat messages: got %v", msgs)
	}
	if _, ok := msgs[0].Data["timestamp"]; len(msgs) == 1 && !ok {
		t.Error("chat message missing timestamp")
	}

	code := conn2.eventsOf(types.EventCodeUpdate)
	if len(code) != 1 || code[0].Data["code"] != "func main() {}" || code[0].Data["language"] != "go" {
		t.Errorf("code updates: got %v", code)
	}

	strokes := conn2.eventsOf(types.EventWhiteboardUpdate)
	if len(strokes) != 1 {
		t.Errorf("whiteboard updates: got %d, want 1", len(strokes))
	}

	// Nothing echoes to the sender.
	if n := len(conn1.eventsOf(types.EventReceiveMessage)); n != 0 {
		t.Errorf("sender received own chat: %d", n)
	}
}

func TestLeaveRoomAnnounces(t *testing.T) {
	h := newInterviewHub(t)

	conn1 := dial(t, h, "h1")
	conn2 := dial(t, h, "h2")

	joinRoom(conn1, "room-42", "u1", "Alice")
	joinRoom(conn2, "room-42", "u2", "Bob")
	settle()

	conn2.readCh <- types.Envelope{
		Event: types.EventLeaveRoom,
		Room:  "room-42",
		Data:  map[string]any{"identity": "u2"},
	}
	settle()

	left := conn1.eventsOf(types.EventUserLeft)
	if len(left) != 1 {
		t.Fatalf("leave notices: got %d, want 1", len(left))
	}
	if left[0].Data["identity"] != "u2" || left[0].Data["connectionHandle"] != "h2" {
		t.Errorf("leave notice data: got %v", left[0].Data)
	}
	if members := h.MembersExcept("room-42", ""); len(members) != 1 || members[0] != "h1" {
		t.Errorf("room members after leave: got %v, want [h1]", members)
	}
}

func TestDisconnectClearsInterviewRoom(t *testing.T) {
	h := newInterviewHub(t)

	conn1 := dial(t, h, "h1")
	conn2 := dial(t, h, "h2")

	joinRoom(conn1, "room-42", "u1", "Alice")
	joinRoom(conn2, "room-42", "u2", "Bob")
	settle()

	conn2.Close()
	settle()

	for _, m := range h.MembersExcept("room-42", "") {
		if m == "h2" {
			t.Error("disconnected handle still a room member")
		}
	}
	if _, ok := h.LookupIdentity("u2"); ok {
		t.Error("disconnected identity still online")
	}
}
