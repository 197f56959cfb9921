package server

import (
	"github.com/gofiber/fiber/v3"

	"github.com/devconnect/realtime/src/types"
)

func (s *Server) registerRoutes() {
	s.app.Get("/ws/info", s.handleInfo)

	api := s.app.Group("/api")
	api.Post("/notify", s.handleNotify)
	api.Get("/online", s.handleOnline)
}

func (s *Server) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"websocket": true,
		"endpoints": []string{"/ws", "/ws/interview"},
		"clients":   s.svc.ClientCount(),
		"rooms":     len(s.svc.Rooms()),
		"online":    len(s.svc.OnlineIdentities()),
	})
}

// notifyRequest is the payload the REST/business layer posts to push a live
// notification at an identity.
type notifyRequest struct {
	Identity string         `json:"identity"`
	Event    string         `json:"event"`
	Data     map[string]any `json:"data"`
}

// handleNotify is the Notification Pusher boundary: delivered=false tells
// the caller its persisted notification record remains the system of record.
func (s *Server) handleNotify(c fiber.Ctx) error {
	var req notifyRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid_body", "message": err.Error(),
		})
	}
	if req.Identity == "" || req.Event == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing_fields", "message": "identity and event are required",
		})
	}

	delivered := s.svc.PushIfOnline(
		types.Identity(req.Identity),
		types.EventKind(req.Event),
		req.Data,
	)
	return c.JSON(fiber.Map{"delivered": delivered})
}

func (s *Server) handleOnline(c fiber.Ctx) error {
	ids := s.svc.OnlineIdentities()
	users := make([]string, len(ids))
	for i, id := range ids {
		users[i] = string(id)
	}
	return c.JSON(fiber.Map{"users": users, "count": len(users)})
}
