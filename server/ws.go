package server

import (
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/devconnect/realtime/src/hub"
	"github.com/devconnect/realtime/src/types"
)

// handleWS returns a fasthttp handler that upgrades the connection and runs
// the client pumps for the given namespace until the peer disconnects.
func (s *Server) handleWS(ns types.Namespace) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		upgrade := string(ctx.Request.Header.Peek("Upgrade"))
		if !strings.EqualFold(upgrade, "websocket") {
			ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"error":"upgrade_required","message":"WebSocket upgrade required"}`)
			return
		}

		// The connection cap is the one fatal-class condition; it is
		// surfaced here at accept time, never inside the core.
		if s.hub.ClientCount() >= s.cfg.MaxConnections {
			s.logger.Warn().Int("max", s.cfg.MaxConnections).Msg("connection limit reached, rejecting upgrade")
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"error":"capacity","message":"connection limit reached"}`)
			return
		}

		identity := handshakeIdentity(ns, ctx)
		handle := uuid.New().String()

		err := s.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			client := hub.NewClient(handle, identity, ns, s.wrapConn(conn), s.hub)
			s.hub.Register(client)
			go client.WritePump()
			client.ReadPump()
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("websocket upgrade failed")
		}
	}
}

// handshakeIdentity extracts the optional identity from the handshake. Only
// the collab namespace identifies at connect time; interview connections
// identify later via join-room. The JS client sends the literal string
// "undefined" when no user is logged in — that is an anonymous connection,
// not an identity.
func handshakeIdentity(ns types.Namespace, ctx *fasthttp.RequestCtx) types.Identity {
	if ns != types.NamespaceCollab {
		return ""
	}
	raw := string(ctx.QueryArgs().Peek("identity"))
	if raw == "" || raw == "undefined" {
		return ""
	}
	return types.Identity(raw)
}

// wsConn adapts fasthttp/websocket.Conn to types.Conn, owning all deadline
// and liveness handling so the hub stays transport-agnostic.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (s *Server) wrapConn(conn *websocket.Conn) *wsConn {
	conn.SetReadLimit(s.cfg.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	pongWait := s.cfg.PongWait
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return &wsConn{conn: conn, writeTimeout: s.cfg.WriteTimeout}
}

func (w *wsConn) WriteJSON(v any) error {
	w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	return w.conn.WriteJSON(v)
}

func (w *wsConn) ReadJSON(v any) error {
	return w.conn.ReadJSON(v)
}

func (w *wsConn) Ping() error {
	w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}
