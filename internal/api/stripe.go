package api

import (
	"errors"

	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/Egham-7/repurpose-api/internal/services/auth"
	"github.com/Egham-7/repurpose-api/internal/services/usage"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

type StripeHandler struct {
	stripeService *usage.StripeService
}

func NewStripeHandler(stripeService *usage.StripeService) *StripeHandler {
	return &StripeHandler{
		stripeService: stripeService,
	}
}

type checkoutRequest struct {
	Plan string `json:"plan"`
}

// CreateCheckoutSession handles POST /api/checkout
func (h *StripeHandler) CreateCheckoutSession(c *fiber.Ctx) error {
	user := auth.GetUser(c)
	if user == nil {
		return writeError(c, models.NewUnauthenticatedError())
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Plan == "" {
		return badRequest(c, "plan is required")
	}

	result, err := h.stripeService.CreateCheckoutSession(c.UserContext(), user, models.PlanID(req.Plan))
	switch {
	case errors.Is(err, usage.ErrUnknownPlan), errors.Is(err, usage.ErrPlanNotPurchasable):
		return badRequest(c, err.Error())
	case err != nil:
		return writeError(c, models.NewInternalError("checkout failed", err))
	}

	return c.JSON(result)
}

// HandleWebhook handles POST /api/webhooks/stripe
func (h *StripeHandler) HandleWebhook(c *fiber.Ctx) error {
	err := h.stripeService.HandleWebhook(c.UserContext(), c.Body(), c.Get("Stripe-Signature"))
	if errors.Is(err, usage.ErrInvalidSignature) {
		fiberlog.Warnf("Rejected stripe webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid signature",
		})
	}
	if err != nil {
		return writeError(c, models.NewInternalError("webhook processing failed", err))
	}

	return c.JSON(fiber.Map{"received": true})
}
