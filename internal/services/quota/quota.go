package quota

import "github.com/Egham-7/repurpose-api/internal/models"

// Result is the outcome of a quota check. Remaining is not clamped and goes
// negative when usage already passed the limit.
type Result struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	Limit     int  `json:"limit"`
}

// Evaluator computes credit headroom from the plan catalog. It has no side effects
// and its answer is only a hint: the authoritative check is the conditional
// update in usage.CreditsService.Consume.
type Evaluator struct {
	catalog *models.PlanCatalog
}

func NewEvaluator(catalog *models.PlanCatalog) *Evaluator {
	if catalog == nil {
		catalog = models.NewPlanCatalog(nil)
	}
	return &Evaluator{catalog: catalog}
}

// Limit returns the credit allotment for a plan; unknown plans get the free limit.
func (e *Evaluator) Limit(plan models.PlanID) int {
	return e.catalog.Resolve(plan).Credits
}

// Evaluate reports whether the user can spend creditsNeeded more credits.
func (e *Evaluator) Evaluate(user *models.User, creditsNeeded int) Result {
	limit := e.Limit(user.Plan)
	remaining := limit - user.CreditsUsed
	return Result{
		Allowed:   remaining >= creditsNeeded,
		Remaining: remaining,
		Limit:     limit,
	}
}
