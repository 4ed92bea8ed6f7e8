package middleware

import (
	"context"
	"strings"

	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/Egham-7/repurpose-api/internal/services/auth"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// SessionResolver maps a session token to its user; nil means anonymous.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*models.User, error)
}

type AuthMiddleware struct {
	resolver SessionResolver
	config   *AuthMiddlewareConfig
}

type AuthMiddlewareConfig struct {
	CookieName  string
	HeaderNames []string
	SkipPaths   []string
}

func DefaultAuthMiddlewareConfig() *AuthMiddlewareConfig {
	return &AuthMiddlewareConfig{
		CookieName:  "session",
		HeaderNames: []string{"Authorization"},
		SkipPaths: []string{
			"/health",
			"/api/webhooks",
		},
	}
}

func NewAuthMiddleware(resolver SessionResolver, config *AuthMiddlewareConfig) *AuthMiddleware {
	if config == nil {
		config = DefaultAuthMiddlewareConfig()
	}
	if config.CookieName == "" {
		config.CookieName = "session"
	}
	return &AuthMiddleware{
		resolver: resolver,
		config:   config,
	}
}

// Authenticate resolves the session when one is present and always continues.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return m.authenticate(false)
}

// RequireAuth rejects anonymous requests with 401.
func (m *AuthMiddleware) RequireAuth() fiber.Handler {
	return m.authenticate(true)
}

func (m *AuthMiddleware) authenticate(required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.shouldSkipPath(c.Path()) {
			return c.Next()
		}

		if auth.IsAuthenticated(c) {
			return c.Next()
		}

		token := m.extractToken(c)
		if token != "" {
			user, err := m.resolver.ResolveSession(c.UserContext(), token)
			if err != nil {
				fiberlog.Errorf("Failed to resolve session: %v", err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "internal server error",
				})
			}
			if user != nil {
				auth.SetUser(c, user, token)
				return c.Next()
			}
		}

		if required {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": models.NewUnauthenticatedError().Message,
			})
		}
		return c.Next()
	}
}

// extractToken reads the session cookie, then falls back to a bearer header.
func (m *AuthMiddleware) extractToken(c *fiber.Ctx) string {
	if token := c.Cookies(m.config.CookieName); token != "" {
		return token
	}

	for _, headerName := range m.config.HeaderNames {
		if header := c.Get(headerName); header != "" {
			if after, ok := strings.CutPrefix(header, "Bearer "); ok {
				return after
			}
			return strings.TrimSpace(header)
		}
	}

	return ""
}

func (m *AuthMiddleware) shouldSkipPath(path string) bool {
	for _, skipPath := range m.config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}
