package middlewares

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"akademiku_backend/internals/middlewares/logger"
)

const requestIDKey = "reqid"

// SetupMiddlewares installs the global chain: recover, request id, access
// log, CORS. Health probes are not access-logged.
func SetupMiddlewares(app *fiber.App) {
	app.Use(RecoveryMiddleware())
	app.Use(requestid.New(requestid.Config{
		Header:     "X-Request-ID",
		ContextKey: requestIDKey,
	}))
	app.Use(logger.LoggerMiddleware("/health"))
	app.Use(CorsMiddleware())
}
