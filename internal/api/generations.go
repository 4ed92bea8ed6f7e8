package api

import (
	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/Egham-7/repurpose-api/internal/services/auth"
	"github.com/Egham-7/repurpose-api/internal/services/generations"
	"github.com/Egham-7/repurpose-api/internal/services/orchestrator"

	"github.com/gofiber/fiber/v2"
)

type GenerationsHandler struct {
	generations  *generations.Service
	orchestrator *orchestrator.Orchestrator
}

func NewGenerationsHandler(gens *generations.Service, orch *orchestrator.Orchestrator) *GenerationsHandler {
	return &GenerationsHandler{generations: gens, orchestrator: orch}
}

// List handles GET /api/generations
func (h *GenerationsHandler) List(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return writeError(c, models.NewUnauthenticatedError())
	}

	list, err := h.generations.ListRecent(c.UserContext(), userID, generations.HistoryLimit)
	if err != nil {
		return writeError(c, models.NewPersistenceError(err))
	}

	return c.JSON(fiber.Map{"generations": list})
}

type retryRequest struct {
	OutputTypes []string `json:"outputTypes"`
}

// Retry handles POST /api/generations/:id/retry
func (h *GenerationsHandler) Retry(c *fiber.Ctx) error {
	user := auth.GetUser(c)
	if user == nil {
		return writeError(c, models.NewUnauthenticatedError())
	}

	var req retryRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	res, err := h.orchestrator.Retry(c.UserContext(), user, c.Params("id"), req.OutputTypes)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(newGenerateResponse(res))
}
