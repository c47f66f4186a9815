// file: internals/features/sessions/earnings/route/earning_route.go
package route

import (
	"github.com/gofiber/fiber/v2"

	"akademiku_backend/internals/features/sessions/earnings/controller"
	"akademiku_backend/internals/features/sessions/engine"
)

// EarningAdminRoutes mounts under /api/a (JWT + admin role).
func EarningAdminRoutes(admin fiber.Router, eng *engine.Engine) {
	h := controller.NewEarningController(eng.DB, eng.Earnings)

	admin.Get("/earnings", h.List)
	admin.Get("/sessions/:id/earning", h.GetBySession)
	admin.Post("/sessions/:id/earning/calculate", h.Calculate)
}
