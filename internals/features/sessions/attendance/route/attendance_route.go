// file: internals/features/sessions/attendance/route/attendance_route.go
package route

import (
	"github.com/gofiber/fiber/v2"

	"akademiku_backend/internals/configs"
	"akademiku_backend/internals/features/sessions/attendance/controller"
	"akademiku_backend/internals/features/sessions/engine"
)

// AttendanceAdminRoutes mounts under /api/a (JWT + admin role).
func AttendanceAdminRoutes(admin fiber.Router, eng *engine.Engine) {
	h := controller.NewAttendanceController(eng.DB, eng.Ledger)

	admin.Get("/sessions/:id/attendance", h.ListBySession)
	admin.Post("/sessions/:id/attendance/join", h.Join)
	admin.Post("/sessions/:id/attendance/leave", h.Leave)
	admin.Patch("/attendance/:id/override", h.Override)
}

// MeetingWebhookRoutes mounts the provider webhook. Authenticated by the
// provider's signed token, not by user JWT.
func MeetingWebhookRoutes(public fiber.Router, eng *engine.Engine) {
	h := controller.NewMeetingWebhookController(eng.DB, eng.Ledger,
		configs.MeetingWebhookKey, configs.MeetingWebhookSecret)

	public.Post("/webhooks/meeting", h.Handle)
}
