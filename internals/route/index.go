// file: internals/route/index.go
package routes

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"akademiku_backend/internals/configs"
	attendanceRoute "akademiku_backend/internals/features/sessions/attendance/route"
	earningRoute "akademiku_backend/internals/features/sessions/earnings/route"
	"akademiku_backend/internals/features/sessions/engine"
	sessionRoute "akademiku_backend/internals/features/sessions/session/route"
	"akademiku_backend/internals/middlewares"
	authMiddleware "akademiku_backend/internals/middlewares/auth_academy"
)

var startTime time.Time

func SetupRoutes(app *fiber.App, eng *engine.Engine) {
	startTime = time.Now()

	BaseRoutes(app, eng.DB)

	// ===================== PUBLIC (provider callbacks) =====================
	log.Println("[INFO] Setting up PUBLIC group...")
	public := app.Group("/api", middlewares.WebhookRateLimiter())
	attendanceRoute.MeetingWebhookRoutes(public, eng)

	// ===================== ADMIN =====================
	log.Println("[INFO] Setting up ADMIN group (Auth + RoleCheck)...")
	admin := app.Group("/api/a",
		middlewares.GlobalRateLimiter(),
		authMiddleware.AuthJWT(authMiddleware.AuthJWTOpts{
			Secret:              configs.JWTSecret,
			AllowCookieFallback: true,
		}),
		authMiddleware.OnlyRoles("Admin access required", "owner", "admin"),
	)

	// ===================== MOUNT ROUTES =====================
	log.Println("[INFO] Mounting Session routes...")
	sessionRoute.SessionAdminRoutes(admin, eng)
	attendanceRoute.AttendanceAdminRoutes(admin, eng)
	earningRoute.EarningAdminRoutes(admin, eng)
}
