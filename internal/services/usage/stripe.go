package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Egham-7/repurpose-api/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
	"gorm.io/gorm"
)

var (
	ErrUnknownPlan        = errors.New("unknown plan")
	ErrPlanNotPurchasable = errors.New("plan has no stripe price configured")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
)

// CheckoutResult is what the checkout endpoint returns. Demo is set when billing
// is not configured and no Stripe call was made.
type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`
	Demo      bool   `json:"-"`
}

// StripeService moves users between plans through Stripe subscription checkout.
type StripeService struct {
	db      *gorm.DB
	cfg     models.BillingConfig
	catalog *models.PlanCatalog
}

func NewStripeService(db *gorm.DB, cfg models.BillingConfig, catalog *models.PlanCatalog) *StripeService {
	if cfg.Enabled() {
		stripe.Key = cfg.SecretKey
	}

	return &StripeService{
		db:      db,
		cfg:     cfg,
		catalog: catalog,
	}
}

func (s *StripeService) Enabled() bool {
	return s.cfg.Enabled()
}

// CreateCheckoutSession starts a subscription checkout for plan.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, user *models.User, planID models.PlanID) (*CheckoutResult, error) {
	plan, ok := s.catalog.Lookup(planID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}

	if !s.Enabled() {
		return &CheckoutResult{
			URL:     fmt.Sprintf("/pricing?demo=true&plan=%s", plan.ID),
			Message: "Stripe integration ready - add STRIPE_SECRET_KEY to enable payments",
			Demo:    true,
		}, nil
	}

	if plan.StripePriceID == "" {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotPurchasable, plan.ID)
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(user.ID),
		Metadata: map[string]string{
			"user_id": user.ID,
			"plan":    string(plan.ID),
		},
	}
	sessionParams.Context = ctx

	if user.StripeCustomerID != "" {
		sessionParams.Customer = stripe.String(user.StripeCustomerID)
	} else if user.Email != "" {
		sessionParams.CustomerEmail = stripe.String(user.Email)
	}

	sess, err := session.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CheckoutResult{URL: sess.URL, SessionID: sess.ID}, nil
}

// HandleWebhook verifies and applies a Stripe event. Unhandled event types are ignored.
func (s *StripeService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.Enabled() {
		return nil
	}

	event, err := webhook.ConstructEvent(payload, signature, s.cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return s.applyEvent(ctx, event)
}

func (s *StripeService) applyEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutSessionCompleted(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		fiberlog.Debugf("Ignoring stripe event %s", event.Type)
		return nil
	}
}

func (s *StripeService) handleCheckoutSessionCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}

	userID := sess.Metadata["user_id"]
	plan, ok := s.catalog.Lookup(models.PlanID(sess.Metadata["plan"]))
	if userID == "" || !ok {
		return fmt.Errorf("invalid checkout session metadata")
	}

	updates := map[string]any{"plan": plan.ID}
	if sess.Customer != nil && sess.Customer.ID != "" {
		updates["stripe_customer_id"] = sess.Customer.ID
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update plan: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	fiberlog.Infof("User %s upgraded to plan %s", userID, plan.ID)
	return nil
}

func (s *StripeService) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return fmt.Errorf("subscription has no customer")
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("stripe_customer_id = ?", sub.Customer.ID).
		Update("plan", models.PlanFree).Error; err != nil {
		return fmt.Errorf("failed to downgrade plan: %w", err)
	}

	fiberlog.Infof("Stripe customer %s downgraded to free", sub.Customer.ID)
	return nil
}
