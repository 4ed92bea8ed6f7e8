package models

import (
	"slices"
	"strings"
)

type PlanID string

const (
	PlanFree    PlanID = "free"
	PlanStarter PlanID = "starter"
	PlanPro     PlanID = "pro"
	PlanAgency  PlanID = "agency"
)

// Plan is one subscription tier. Credits is the monthly generation allotment.
type Plan struct {
	ID            PlanID  `json:"id"`
	Name          string  `json:"name"`
	Credits       int     `json:"credits"`
	PriceUSD      float64 `json:"price"`
	StripePriceID string  `json:"-"`
}

// PlanOverride is the YAML form of a plan entry. Unset fields keep the built-in value;
// Credits is a pointer so a plan can be set to zero credits.
type PlanOverride struct {
	Name          string  `yaml:"name"`
	Credits       *int    `yaml:"credits"`
	PriceUSD      float64 `yaml:"price_usd"`
	StripePriceID string  `yaml:"stripe_price_id"`
}

// PlanCatalog is the single plan table shared by quota checks, stats and billing.
type PlanCatalog struct {
	plans map[PlanID]Plan
	order []PlanID
}

// DefaultPlans returns the built-in tiers in display order.
func DefaultPlans() []Plan {
	return []Plan{
		{ID: PlanFree, Name: "Free", Credits: 5, PriceUSD: 0},
		{ID: PlanStarter, Name: "Starter", Credits: 50, PriceUSD: 9},
		{ID: PlanPro, Name: "Pro", Credits: 200, PriceUSD: 19},
		{ID: PlanAgency, Name: "Agency", Credits: 1000, PriceUSD: 49},
	}
}

// NewPlanCatalog builds a catalog from the defaults with overrides applied per plan id.
// The free tier always exists since it backs unknown plans. Plans not in the defaults
// are listed after them, sorted by id.
func NewPlanCatalog(overrides map[string]PlanOverride) *PlanCatalog {
	c := &PlanCatalog{plans: make(map[PlanID]Plan)}
	for _, p := range DefaultPlans() {
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}

	normalized := make(map[PlanID]PlanOverride, len(overrides))
	var added []PlanID
	for rawID, override := range overrides {
		id := PlanID(strings.ToLower(strings.TrimSpace(rawID)))
		if id == "" {
			continue
		}
		normalized[id] = override
		if _, exists := c.plans[id]; !exists {
			added = append(added, id)
		}
	}
	slices.Sort(added)
	for _, id := range added {
		c.plans[id] = Plan{ID: id, Name: string(id)}
		c.order = append(c.order, id)
	}

	for id, override := range normalized {
		base := c.plans[id]
		if override.Name != "" {
			base.Name = override.Name
		}
		if override.Credits != nil && *override.Credits >= 0 {
			base.Credits = *override.Credits
		}
		if override.PriceUSD > 0 {
			base.PriceUSD = override.PriceUSD
		}
		if override.StripePriceID != "" {
			base.StripePriceID = override.StripePriceID
		}
		c.plans[id] = base
	}

	return c
}

// Lookup returns the plan for id and whether it is known.
func (c *PlanCatalog) Lookup(id PlanID) (Plan, bool) {
	p, ok := c.plans[PlanID(strings.ToLower(string(id)))]
	return p, ok
}

// Resolve returns the plan for id, falling back to the free tier.
func (c *PlanCatalog) Resolve(id PlanID) Plan {
	if p, ok := c.Lookup(id); ok {
		return p
	}
	return c.plans[PlanFree]
}

// Plans returns every plan in display order.
func (c *PlanCatalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}
