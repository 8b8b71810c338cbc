package domain

import "fmt"

// Plan is a purchasable premium period.
type Plan struct {
	ID       SubscriptionType `json:"id"`
	Name     string           `json:"name"`
	Amount   int64            `json:"amount"` // minor units (499 = $4.99)
	Currency string           `json:"currency"`
	Popular  bool             `json:"popular"` // Show "Best value" badge
}

// Pricing holds the configured plan prices.
type Pricing struct {
	Monthly  int64
	Yearly   int64
	Currency string
}

// AvailablePlans returns all available plans.
func (p Pricing) AvailablePlans() []Plan {
	return []Plan{
		{
			ID:       SubscriptionMonthly,
			Name:     "Premium Monthly",
			Amount:   p.Monthly,
			Currency: p.Currency,
		},
		{
			ID:       SubscriptionYearly,
			Name:     "Premium Yearly",
			Amount:   p.Yearly,
			Currency: p.Currency,
			Popular:  true,
		},
	}
}

// GetPlan returns the plan for a subscription type.
func (p Pricing) GetPlan(t SubscriptionType) (Plan, bool) {
	for _, plan := range p.AvailablePlans() {
		if plan.ID == t {
			return plan, true
		}
	}
	return Plan{}, false
}

// Description is the line shown on the gateway checkout page.
func (pl Plan) Description() string {
	return fmt.Sprintf("Tarot %s subscription", pl.ID)
}
