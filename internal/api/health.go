package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type Pinger interface {
	Ping() error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db          Pinger
	redisClient *redis.Client
	backendName string
}

// NewHealthHandler creates a new health check handler. redisClient may be nil.
func NewHealthHandler(db Pinger, redisClient *redis.Client, backendName string) *HealthHandler {
	return &HealthHandler{
		db:          db,
		redisClient: redisClient,
		backendName: backendName,
	}
}

// HealthCheck returns the health status of the service and its dependencies
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	dbStatus := h.checkDatabase()
	redisStatus := h.checkRedis()

	overallStatus := "healthy"
	statusCode := fiber.StatusOK

	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		overallStatus = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	response := fiber.Map{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"backend":   h.backendName,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	}

	return c.Status(statusCode).JSON(response)
}

func (h *HealthHandler) checkDatabase() string {
	if err := h.db.Ping(); err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// checkRedis verifies Redis connectivity
func (h *HealthHandler) checkRedis() string {
	if h.redisClient == nil {
		return "disabled"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		return "unhealthy"
	}

	return "healthy"
}
