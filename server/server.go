// Package server wires the realtime core to its two transports: a Fiber app
// for the REST/diagnostic surface and raw fasthttp handlers for the
// WebSocket upgrade endpoints.
package server

import (
	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/devconnect/realtime/config"
	"github.com/devconnect/realtime/src/hub"
	"github.com/devconnect/realtime/src/service"
	"github.com/devconnect/realtime/src/types"
)

// Server assembles the HTTP and WebSocket surfaces of the realtime service.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	svc      *service.Service
	logger   zerolog.Logger
	app      *fiber.App
	upgrader websocket.FastHTTPUpgrader
}

// New creates a Server with all routes registered.
func New(cfg *config.Config, h *hub.Hub, svc *service.Service, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		hub:    h,
		svc:    svc,
		logger: logger.With().Str("component", "server").Logger(),
		app:    fiber.New(),
		upgrader: websocket.FastHTTPUpgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// Session validation happened upstream; the reverse proxy
			// owns origin policy.
			CheckOrigin: func(ctx *fasthttp.RequestCtx) bool { return true },
		},
	}
	s.registerRoutes()
	return s
}

// App returns the Fiber app carrying the REST routes. Exposed for tests.
func (s *Server) App() *fiber.App { return s.app }

// Handler returns the root fasthttp handler: WebSocket endpoints are served
// directly (Fiber v3 does not expose *fasthttp.RequestCtx to its handlers),
// everything else falls through to the Fiber app.
func (s *Server) Handler() fasthttp.RequestHandler {
	appHandler := s.app.Handler()
	collabWS := s.handleWS(types.NamespaceCollab)
	interviewWS := s.handleWS(types.NamespaceInterview)

	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/ws":
			collabWS(ctx)
		case "/ws/interview":
			interviewWS(ctx)
		default:
			appHandler(ctx)
		}
	}
}
