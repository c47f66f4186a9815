package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Locals keys filled by AuthJWT.
const (
	LocUserID    = "user_id"
	LocTenantID  = "tenant_id"
	LocTeacherID = "teacher_id"
	LocRoles     = "roles"
	LocRole      = "role"
)

type AuthJWTOpts struct {
	Secret              string
	BlacklistChecker    func(rawToken string) (bool, error) // true when revoked
	AllowCookieFallback bool                                // read cookie access_token when there is no Bearer
}

func AuthJWT(o AuthJWTOpts) fiber.Handler {
	secret := strings.TrimSpace(o.Secret)
	if secret == "" {
		panic("AuthJWT: Secret is required")
	}

	return func(c *fiber.Ctx) error {
		// 1) Authorization: Bearer xxx, or the cookie when allowed
		raw := ""
		if authz := strings.TrimSpace(c.Get(fiber.HeaderAuthorization)); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			raw = strings.TrimSpace(authz[7:])
		} else if o.AllowCookieFallback {
			raw = strings.TrimSpace(c.Cookies("access_token"))
		}
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}

		if o.BlacklistChecker != nil {
			if black, err := o.BlacklistChecker(raw); err == nil && black {
				return fiber.NewError(fiber.StatusUnauthorized, "Token revoked")
			}
		}

		// 2) parse + pin the algorithm family
		tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !tok.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
		}
		c.Locals("jwt_claims", claims)

		// 3) hydrate locals; user id from id / sub / user_id in that order
		var uid string
		for _, k := range []string{"id", "sub", "user_id"} {
			if v := strClaim(claims, k); v != "" {
				uid = v
				break
			}
		}
		if _, err := uuid.Parse(uid); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid user id in token")
		}
		c.Locals(LocUserID, uid)

		tenant := strClaim(claims, "academy_id")
		if tenant == "" {
			tenant = strClaim(claims, "school_id")
		}
		if tenant != "" {
			c.Locals(LocTenantID, tenant)
		}
		if tid := strClaim(claims, "teacher_id"); tid != "" {
			c.Locals(LocTeacherID, tid)
		}

		roles := readStringSlice(claims["roles_global"])
		if len(roles) == 0 {
			roles = readStringSlice(claims["roles"])
		}
		c.Locals(LocRoles, roles)
		c.Locals(LocRole, primaryRole(roles))

		return c.Next()
	}
}

// OnlyRoles lets the request through when the token carries one of roles.
func OnlyRoles(customMessage string, roles ...string) fiber.Handler {
	if customMessage == "" {
		customMessage = "Forbidden: you are not authorized to access this resource"
	}
	return func(c *fiber.Ctx) error {
		have, _ := c.Locals(LocRoles).([]string)
		for _, h := range have {
			for _, want := range roles {
				if strings.EqualFold(h, want) {
					return c.Next()
				}
			}
		}
		return fiber.NewError(fiber.StatusForbidden, customMessage)
	}
}

// UserID returns the authenticated user id, or uuid.Nil.
func UserID(c *fiber.Ctx) uuid.UUID {
	s, _ := c.Locals(LocUserID).(string)
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// TenantID returns the academy from the token, or nil for platform tokens.
func TenantID(c *fiber.Ctx) *uuid.UUID {
	s, _ := c.Locals(LocTenantID).(string)
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &id
}

func strClaim(m jwt.MapClaims, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// readStringSlice accepts []string or []any.
func readStringSlice(v any) []string {
	out := make([]string, 0)
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, it := range t {
			if s, ok := it.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// primaryRole picks owner > admin > teacher > student, else "user".
func primaryRole(roles []string) string {
	has := map[string]bool{}
	for _, r := range roles {
		has[strings.ToLower(r)] = true
	}
	for _, w := range []string{"owner", "admin", "teacher", "student"} {
		if has[w] {
			return w
		}
	}
	return "user"
}
