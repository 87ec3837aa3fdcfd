package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Locals keys written once a request is authenticated.
const (
	LocalUserID    = "userID"
	LocalRole      = "role"
	LocalPrincipal = "principal"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. present reports whether any Authorization header was sent, so
// callers can tell a missing header from a malformed one.
func BearerToken(c *fiber.Ctx) (token string, present bool) {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if header == "" {
		return "", false
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", true
	}
	return parts[1], true
}

// BindIdentity records the authenticated user on the request. Handlers read
// it from locals; service-layer logs read it from the user context.
func BindIdentity(c *fiber.Ctx, userID uint, role string) {
	c.Locals(LocalUserID, userID)
	c.Locals(LocalRole, role)

	ctx := context.WithValue(c.UserContext(), UserIDKey, userID)
	ctx = context.WithValue(ctx, RoleKey, role)
	c.SetUserContext(ctx)
}
