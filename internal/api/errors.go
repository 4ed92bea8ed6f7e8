package api

import (
	"github.com/Egham-7/repurpose-api/internal/models"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// writeError renders err as {error, code?, remaining?, limit?, failed?}.
// Server-side failures are logged in full and returned with an opaque message.
func writeError(c *fiber.Ctx, err error) error {
	appErr := models.SanitizeError(err)
	status := appErr.GetStatusCode()

	if status >= fiber.StatusInternalServerError {
		fiberlog.Errorf("%s %s failed: %v", c.Method(), c.Path(), err)
	}

	body := fiber.Map{"error": appErr.Message}
	if appErr.Code != "" {
		body["code"] = appErr.Code
	}
	if appErr.Type == models.ErrorTypeQuotaExceeded {
		body["remaining"] = appErr.Remaining
		body["limit"] = appErr.Limit
	}
	if len(appErr.Failed) > 0 {
		body["failed"] = appErr.Failed
	}

	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, message string) error {
	return writeError(c, models.NewValidationError(message, nil))
}
