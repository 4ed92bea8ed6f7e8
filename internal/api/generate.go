package api

import (
	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/Egham-7/repurpose-api/internal/services/auth"
	"github.com/Egham-7/repurpose-api/internal/services/orchestrator"

	"github.com/gofiber/fiber/v2"
)

type GenerateHandler struct {
	orchestrator *orchestrator.Orchestrator
}

func NewGenerateHandler(orch *orchestrator.Orchestrator) *GenerateHandler {
	return &GenerateHandler{orchestrator: orch}
}

// GenerateResponse is returned by both generate and retry.
type GenerateResponse struct {
	Success          bool                         `json:"success"`
	GenerationID     string                       `json:"generationId"`
	Status           models.GenerationStatus      `json:"status"`
	Outputs          map[models.OutputType]string `json:"outputs"`
	CreditsRemaining int                          `json:"creditsRemaining"`
	Partial          bool                         `json:"partial,omitempty"`
	Failed           map[models.OutputType]string `json:"failed,omitempty"`
}

func newGenerateResponse(res *orchestrator.Result) GenerateResponse {
	return GenerateResponse{
		Success:          true,
		GenerationID:     res.GenerationID,
		Status:           res.Status,
		Outputs:          res.Outputs,
		CreditsRemaining: res.CreditsRemaining,
		Partial:          res.Partial(),
		Failed:           res.Failed,
	}
}

// Generate handles POST /api/generate
func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	// Quota is reported before anything about the body.
	user := auth.GetUser(c)
	if err := h.orchestrator.Admit(user); err != nil {
		return writeError(c, err)
	}

	var req orchestrator.Request
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	res, err := h.orchestrator.Generate(c.UserContext(), user, req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(newGenerateResponse(res))
}
