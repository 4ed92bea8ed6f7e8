package auth

import (
	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/gofiber/fiber/v2"
)

const (
	userLocalsKey  = "auth_user"
	tokenLocalsKey = "auth_session_token"
)

// SetUser stores the resolved session identity on the request.
func SetUser(c *fiber.Ctx, user *models.User, token string) {
	c.Locals(userLocalsKey, user)
	c.Locals(tokenLocalsKey, token)
}

// GetUser returns the session user, or nil when the request is anonymous.
func GetUser(c *fiber.Ctx) *models.User {
	user, ok := c.Locals(userLocalsKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

func GetUserID(c *fiber.Ctx) (string, bool) {
	user := GetUser(c)
	if user == nil {
		return "", false
	}
	return user.ID, user.ID != ""
}

func GetSessionToken(c *fiber.Ctx) string {
	token, _ := c.Locals(tokenLocalsKey).(string)
	return token
}

func IsAuthenticated(c *fiber.Ctx) bool {
	return GetUser(c) != nil
}
