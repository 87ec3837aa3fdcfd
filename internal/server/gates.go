package server

import (
	"context"
	"errors"
	"log/slog"

	"alvacus/internal/auth"
	"alvacus/internal/middleware"
	"alvacus/internal/models"
	"alvacus/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// sessionCookie holds the refresh token.
const sessionCookie = "jwt"

const (
	msgNoToken      = "No authentication token found, authentication denied"
	msgAuthFailed   = "Authentication failed"
	msgUnauthorized = "Unauthorized"
	msgForbidden    = "Forbidden"
)

// Gate labels for TokenRejections.
const (
	gateCookie = "cookie"
	gateBearer = "bearer"
	gateAdmin  = "admin"
)

var (
	errTokenRevoked = errors.New("token revoked")
	errTokenStale   = errors.New("token version is stale")
)

// SessionRequired authenticates the request from the refresh-token cookie.
func (s *Server) SessionRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}
		return s.cookieGate(c)
	}
}

// BearerRequired authenticates the request from an access token in the
// Authorization header.
func (s *Server) BearerRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return s.bearerGate(c)
	}
}

// AuthRequired accepts either credential: a Bearer header, when sent, is
// checked with bearer semantics, otherwise the session cookie is used.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}
		if _, present := middleware.BearerToken(c); present {
			return s.bearerGate(c)
		}
		return s.cookieGate(c)
	}
}

// OptionalAuth resolves a principal when valid credentials are sent and
// otherwise lets the request through anonymously.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if raw, present := middleware.BearerToken(c); present {
			if p, err := s.principalFromAccess(ctx, raw); err == nil {
				s.bind(c, p)
			}
			return c.Next()
		}
		if raw := c.Cookies(sessionCookie); raw != "" {
			if p, _, err := s.principalFromRefresh(ctx, raw); err == nil {
				s.bind(c, p)
			}
		}
		return c.Next()
	}
}

// AdminRequired must run after an authenticating gate.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !principal(c).IsAdmin() {
			observability.TokenRejections.WithLabelValues(gateAdmin, "role").Inc()
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msgUnauthorized))
		}
		return c.Next()
	}
}

func (s *Server) cookieGate(c *fiber.Ctx) error {
	raw := c.Cookies(sessionCookie)
	if raw == "" {
		observability.TokenRejections.WithLabelValues(gateCookie, "missing").Inc()
		return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msgNoToken))
	}

	p, _, err := s.principalFromRefresh(c.UserContext(), raw)
	if err != nil {
		s.reject(c, gateCookie, err)
		return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msgAuthFailed))
	}
	s.bind(c, p)
	return c.Next()
}

func (s *Server) bearerGate(c *fiber.Ctx) error {
	raw, _ := middleware.BearerToken(c)
	if raw == "" {
		observability.TokenRejections.WithLabelValues(gateBearer, "missing").Inc()
		return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msgUnauthorized))
	}

	p, err := s.principalFromAccess(c.UserContext(), raw)
	if err != nil {
		s.reject(c, gateBearer, err)
		return models.RespondWithError(c, fiber.StatusForbidden, models.NewForbiddenError(msgForbidden))
	}
	s.bind(c, p)
	return c.Next()
}

func (s *Server) reject(c *fiber.Ctx, gate string, err error) {
	reason := "invalid"
	switch {
	case errors.Is(err, errTokenRevoked):
		reason = "revoked"
	case errors.Is(err, errTokenStale):
		reason = "stale"
	}
	observability.TokenRejections.WithLabelValues(gate, reason).Inc()
	middleware.Logger.DebugContext(c.UserContext(), "token rejected",
		slog.String("gate", gate),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
}

func (s *Server) bind(c *fiber.Ctx, p *auth.Principal) {
	middleware.BindIdentity(c, p.UserID, p.Role)
	c.Locals(middleware.LocalPrincipal, p)
	c.SetUserContext(auth.WithPrincipal(c.UserContext(), p))
}

// principalFromAccess verifies an access token and resolves its principal.
func (s *Server) principalFromAccess(ctx context.Context, raw string) (*auth.Principal, error) {
	claims, err := s.tokens.ParseAccess(raw)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevoked(ctx, claims.ID); err != nil {
		return nil, err
	}
	return s.resolve(ctx, claims.UserInfo.UserID, claims.TokenVersion)
}

// principalFromRefresh verifies a refresh token and resolves its principal.
// The claims are returned so logout can denylist the jti.
func (s *Server) principalFromRefresh(ctx context.Context, raw string) (*auth.Principal, *auth.RefreshClaims, error) {
	claims, err := s.tokens.ParseRefresh(raw)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkRevoked(ctx, claims.ID); err != nil {
		return nil, nil, err
	}
	p, err := s.resolve(ctx, claims.UserID, claims.TokenVersion)
	if err != nil {
		return nil, nil, err
	}
	return p, claims, nil
}

func (s *Server) checkRevoked(ctx context.Context, jti string) error {
	revoked, err := s.denylist.IsRevoked(ctx, jti)
	if err != nil {
		return err
	}
	if revoked {
		return errTokenRevoked
	}
	return nil
}

// resolve re-reads the user so role and token version are current.
func (s *Server) resolve(ctx context.Context, rawID string, tokenVersion int) (*auth.Principal, error) {
	id, err := auth.ParseID(rawID)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.TokenVersion != tokenVersion {
		return nil, errTokenStale
	}
	return auth.NewPrincipal(user), nil
}
