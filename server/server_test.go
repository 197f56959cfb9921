package server_test

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/devconnect/realtime/config"
	"github.com/devconnect/realtime/server"
	"github.com/devconnect/realtime/src/hub"
	"github.com/devconnect/realtime/src/service"
	"github.com/devconnect/realtime/src/types"
)

type mockConn struct {
	mu      sync.Mutex
	written []types.Envelope
	block   chan struct{}
}

func newMockConn() *mockConn { return &mockConn{block: make(chan struct{})} }

func (m *mockConn) WriteJSON(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if env, ok := v.(types.Envelope); ok {
		m.written = append(m.written, env)
	}
	return nil
}

func (m *mockConn) ReadJSON(v any) error {
	<-m.block
	return io.EOF
}

func (m *mockConn) Ping() error  { return nil }
func (m *mockConn) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Port:            0,
		MaxConnections:  10,
		SendBufferSize:  16,
		DropPolicy:      "drop_new",
		PingInterval:    time.Second,
		PongWait:        2 * time.Second,
		WriteTimeout:    time.Second,
		ReadLimit:       65536,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*server.Server, *hub.Hub) {
	t.Helper()
	h := hub.New(zerolog.Nop(), hub.Options{
		SendBufferSize: cfg.SendBufferSize,
		DropPolicy:     hub.DropPolicy(cfg.DropPolicy),
		PingInterval:   cfg.PingInterval,
	})
	go h.Run()
	t.Cleanup(h.Stop)

	svc := service.New(h, zerolog.Nop())
	return server.New(cfg, h, svc, zerolog.Nop()), h
}

func connectIdentity(t *testing.T, h *hub.Hub, handle string, id types.Identity) {
	t.Helper()
	client := hub.NewClient(handle, id, types.NamespaceCollab, newMockConn(), h)
	h.Register(client)
	go client.WritePump()
	time.Sleep(20 * time.Millisecond)
}

func TestNotifyOfflineIdentity(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	req := httptest.NewRequest("POST", "/api/notify",
		strings.NewReader(`{"identity":"nobody","event":"new-message","data":{"from":"u2"}}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["delivered"])
}

func TestNotifyOnlineIdentity(t *testing.T) {
	srv, h := newTestServer(t, testConfig())
	connectIdentity(t, h, "h1", "u1")

	req := httptest.NewRequest("POST", "/api/notify",
		strings.NewReader(`{"identity":"u1","event":"interview-scheduled","data":{"at":"tomorrow"}}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["delivered"])
}

func TestNotifyMissingFields(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	req := httptest.NewRequest("POST", "/api/notify", strings.NewReader(`{"data":{}}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestInfoRoute(t *testing.T) {
	srv, h := newTestServer(t, testConfig())
	connectIdentity(t, h, "h1", "u1")
	h.JoinRoom("r1", "h1")

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/ws/info", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(1), body["clients"])
	assert.Equal(t, float64(1), body["rooms"])
	assert.Equal(t, float64(1), body["online"])
}

func TestOnlineRoute(t *testing.T) {
	srv, h := newTestServer(t, testConfig())
	connectIdentity(t, h, "h1", "u1")

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/api/online", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(1), body["count"])
}

func TestWSEndpointRequiresUpgrade(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	handler := srv.Handler()

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/ws")
	ctx.Request.Header.SetMethod("GET")
	handler(&ctx)

	assert.Equal(t, fasthttp.StatusUpgradeRequired, ctx.Response.StatusCode())
}

func TestWSEndpointRejectsOverCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	srv, h := newTestServer(t, cfg)
	connectIdentity(t, h, "h1", "u1")

	handler := srv.Handler()
	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/ws")
	ctx.Request.Header.SetMethod("GET")
	ctx.Request.Header.Set("Upgrade", "websocket")
	handler(&ctx)

	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
}
