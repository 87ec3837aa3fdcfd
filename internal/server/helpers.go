package server

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"alvacus/internal/auth"
	"alvacus/internal/middleware"
	"alvacus/internal/models"
	"alvacus/internal/repository"
	"alvacus/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "userId" -> "Invalid user ID", "calcId" -> "Invalid calc ID").
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := auth.ParseID(c.Params(param))
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return id, nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "commentId" -> "comment ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		prefix := param[:len(param)-2]
		words := splitCamel(prefix)
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// listQuery reads the shared list parameters. "type" selects the sort order.
func listQuery(c *fiber.Ctx) repository.ListQuery {
	return repository.ListQuery{
		Page:   c.QueryInt("page", repository.DefaultPage),
		Limit:  c.QueryInt("limit", repository.DefaultLimit),
		Sort:   c.Query("type"),
		Search: c.Query("search"),
		Tag:    c.Query("tag"),
	}.Normalized()
}

// pageResponse renders a page as {<key>, totalPages, count, currentPage}.
func pageResponse[T any](key string, page models.Page[T]) fiber.Map {
	return fiber.Map{
		key:           page.Items,
		"totalPages":  page.TotalPages,
		"count":       page.Count,
		"currentPage": page.CurrentPage,
	}
}

// principal returns the authenticated principal, or nil for anonymous
// requests.
func principal(c *fiber.Ctx) *auth.Principal {
	p, _ := c.Locals(middleware.LocalPrincipal).(*auth.Principal)
	return p
}

func (s *Server) cookieMaxAge() time.Duration {
	if s.config.CookieTTL > 0 {
		return s.config.CookieTTL
	}
	return s.tokens.RefreshTTL()
}

// setSession stores the refresh token in the session cookie and renders
// {accessToken, maxAge}. maxAge is the cookie expiry in unix milliseconds.
func (s *Server) setSession(c *fiber.Ctx, status int, sess *service.Session) error {
	ttl := s.cookieMaxAge()
	expires := time.Now().Add(ttl)
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    sess.RefreshToken,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.Status(status).JSON(fiber.Map{
		"accessToken": sess.AccessToken,
		"maxAge":      expires.UnixMilli(),
	})
}

func (s *Server) clearSession(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// bodyError answers a request whose JSON body could not be decoded.
func bodyError(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.StatusBadRequest,
		models.NewValidationError("Invalid request body"))
}

// respond renders a service error, logging internal failures.
func respond(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed", "path", c.Path(), "error", err.Error())
	}
	return models.RespondWithError(c, status, err)
}
