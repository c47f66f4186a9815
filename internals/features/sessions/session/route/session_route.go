// file: internals/features/sessions/session/route/session_route.go
package route

import (
	"github.com/gofiber/fiber/v2"

	"akademiku_backend/internals/features/sessions/engine"
	"akademiku_backend/internals/features/sessions/session/controller"
)

// SessionAdminRoutes mounts under /api/a (JWT + admin role).
func SessionAdminRoutes(admin fiber.Router, eng *engine.Engine) {
	h := controller.NewSessionController(eng.DB, eng.SM, eng.Sweeper)

	grp := admin.Group("/sessions")
	grp.Post("/sweep", h.Sweep)
	grp.Get("/:id", h.GetSession)
	grp.Post("/:id/ready", h.MarkReady)
	grp.Post("/:id/start", h.Start)
	grp.Post("/:id/complete", h.Complete)
	grp.Post("/:id/cancel", h.Cancel)
	grp.Post("/:id/absent", h.MarkAbsent)
}
