package api

import (
	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/gofiber/fiber/v2"
)

type PlansHandler struct {
	catalog *models.PlanCatalog
}

func NewPlansHandler(catalog *models.PlanCatalog) *PlansHandler {
	return &PlansHandler{catalog: catalog}
}

// List handles GET /api/plans
func (h *PlansHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"plans": h.catalog.Plans()})
}
