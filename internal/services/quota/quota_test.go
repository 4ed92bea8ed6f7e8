package quota

import (
	"testing"

	"github.com/Egham-7/repurpose-api/internal/models"
)

func TestEvaluate(t *testing.T) {
	e := NewEvaluator(models.NewPlanCatalog(nil))

	tests := []struct {
		name string
		plan models.PlanID
		used int
		want Result
	}{
		{"free at limit is denied", models.PlanFree, 5, Result{Allowed: false, Remaining: 0, Limit: 5}},
		{"free one below limit is allowed", models.PlanFree, 4, Result{Allowed: true, Remaining: 1, Limit: 5}},
		{"fresh starter", models.PlanStarter, 0, Result{Allowed: true, Remaining: 50, Limit: 50}},
		{"pro limit", models.PlanPro, 10, Result{Allowed: true, Remaining: 190, Limit: 200}},
		{"agency limit", models.PlanAgency, 999, Result{Allowed: true, Remaining: 1, Limit: 1000}},
		{"unknown plan uses free limit", "enterprise", 2, Result{Allowed: true, Remaining: 3, Limit: 5}},
		{"empty plan uses free limit", "", 5, Result{Allowed: false, Remaining: 0, Limit: 5}},
		{"over limit after downgrade is negative", models.PlanFree, 40, Result{Allowed: false, Remaining: -35, Limit: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(&models.User{Plan: tt.plan, CreditsUsed: tt.used}, 1)
			if got != tt.want {
				t.Fatalf("Evaluate(%s, used=%d) = %+v, want %+v", tt.plan, tt.used, got, tt.want)
			}
		})
	}
}

func TestEvaluateCreditsNeeded(t *testing.T) {
	e := NewEvaluator(nil)
	user := &models.User{Plan: models.PlanFree, CreditsUsed: 3}

	if r := e.Evaluate(user, 2); !r.Allowed {
		t.Fatalf("2 credits with 2 remaining should be allowed: %+v", r)
	}
	if r := e.Evaluate(user, 3); r.Allowed {
		t.Fatalf("3 credits with 2 remaining should be denied: %+v", r)
	}
}

func TestEvaluateUsesConfiguredLimits(t *testing.T) {
	one := 1
	catalog := models.NewPlanCatalog(map[string]models.PlanOverride{"free": {Credits: &one}})
	e := NewEvaluator(catalog)

	if r := e.Evaluate(&models.User{Plan: models.PlanFree, CreditsUsed: 1}, 1); r.Allowed || r.Limit != 1 {
		t.Fatalf("override not applied: %+v", r)
	}
}
