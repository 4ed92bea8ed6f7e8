package api

import (
	"time"

	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/Egham-7/repurpose-api/internal/services/auth"
	"github.com/Egham-7/repurpose-api/internal/services/generations"
	"github.com/Egham-7/repurpose-api/internal/services/quota"
	"github.com/Egham-7/repurpose-api/internal/services/usage"

	"github.com/gofiber/fiber/v2"
)

type StatsHandler struct {
	generations  *generations.Service
	usageService *usage.Service
	evaluator    *quota.Evaluator
	catalog      *models.PlanCatalog
}

func NewStatsHandler(gens *generations.Service, usageService *usage.Service, evaluator *quota.Evaluator, catalog *models.PlanCatalog) *StatsHandler {
	return &StatsHandler{
		generations:  gens,
		usageService: usageService,
		evaluator:    evaluator,
		catalog:      catalog,
	}
}

type StatsResponse struct {
	User    StatsUser    `json:"user"`
	Credits StatsCredits `json:"credits"`
	Stats   StatsCounts  `json:"stats"`
}

type StatsUser struct {
	Email    string        `json:"email"`
	Name     string        `json:"name"`
	Plan     models.PlanID `json:"plan"`
	PlanName string        `json:"planName"`
}

type StatsCredits struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

type StatsCounts struct {
	TotalGenerations int64 `json:"totalGenerations"`
	ThisMonth        int64 `json:"thisMonth"`
}

// GetStats handles GET /api/user/stats
func (h *StatsHandler) GetStats(c *fiber.Ctx) error {
	user := auth.GetUser(c)
	if user == nil {
		return writeError(c, models.NewUnauthenticatedError())
	}
	ctx := c.UserContext()

	total, err := h.generations.CountByUser(ctx, user.ID)
	if err != nil {
		return writeError(c, models.NewPersistenceError(err))
	}

	thisMonth, err := h.usageService.CountActionSince(ctx, user.ID, models.UsageActionGenerate, usage.StartOfMonth(time.Now()))
	if err != nil {
		return writeError(c, models.NewPersistenceError(err))
	}

	check := h.evaluator.Evaluate(user, 0)
	plan := h.catalog.Resolve(user.Plan)

	return c.JSON(StatsResponse{
		User: StatsUser{
			Email:    user.Email,
			Name:     user.Name,
			Plan:     user.Plan,
			PlanName: plan.Name,
		},
		Credits: StatsCredits{
			Used:      user.CreditsUsed,
			Limit:     check.Limit,
			Remaining: check.Remaining,
		},
		Stats: StatsCounts{
			TotalGenerations: total,
			ThisMonth:        thisMonth,
		},
	})
}
