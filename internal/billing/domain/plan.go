package domain

import "strings"

// Plan is a purchasable analysis allotment.
type Plan struct {
	Name     string
	PriceID  string
	Analyses int
}

const (
	StarterAnalyses      = 1000
	ProfessionalAnalyses = 5000
)

// Catalog maps processor price ids to plans.
type Catalog struct {
	byPrice map[string]Plan
}

// NewCatalog builds a catalog. Plans without a price id are skipped.
func NewCatalog(plans ...Plan) Catalog {
	c := Catalog{byPrice: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		id := strings.TrimSpace(p.PriceID)
		if id == "" {
			continue
		}
		p.PriceID = id
		c.byPrice[id] = p
	}
	return c
}

// DefaultCatalog returns the Starter and Professional plans for the given
// price ids.
func DefaultCatalog(starterPriceID, professionalPriceID string) Catalog {
	return NewCatalog(
		Plan{Name: "Starter", PriceID: starterPriceID, Analyses: StarterAnalyses},
		Plan{Name: "Professional", PriceID: professionalPriceID, Analyses: ProfessionalAnalyses},
	)
}

// ByPrice looks up the plan sold under priceID.
func (c Catalog) ByPrice(priceID string) (Plan, bool) {
	p, ok := c.byPrice[priceID]
	return p, ok
}

// Plans returns every configured plan.
func (c Catalog) Plans() []Plan {
	plans := make([]Plan, 0, len(c.byPrice))
	for _, p := range c.byPrice {
		plans = append(plans, p)
	}
	return plans
}
