package middleware

import (
	"context"
	"fmt"

	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/Egham-7/repurpose-api/internal/services/auth"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

type Limiter interface {
	Allow(ctx context.Context, userID string, limit int) (bool, error)
}

// GenerateRateLimit caps generation requests per user per hour. Limiter errors fail open.
func GenerateRateLimit(limiter Limiter, perHour int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := auth.GetUserID(c)
		if !ok || perHour <= 0 {
			return c.Next()
		}

		allowed, err := limiter.Allow(c.UserContext(), userID, perHour)
		if err != nil {
			fiberlog.Warnf("Rate limiter unavailable for user %s: %v", userID, err)
			return c.Next()
		}
		if !allowed {
			appErr := models.NewRateLimitError(fmt.Sprintf("%d generations per hour", perHour))
			return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{
				"error": appErr.Message,
				"code":  appErr.Code,
			})
		}

		return c.Next()
	}
}
