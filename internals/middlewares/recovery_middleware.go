package middlewares

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// RecoveryMiddleware turns a handler panic into a 500 and logs it with the
// request id so it can be matched against the access log.
func RecoveryMiddleware() fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			log.Printf("[RECOVER] %s %s reqid=%v: %v", c.Method(), c.Path(), c.Locals(requestIDKey), e)
		},
	})
}
