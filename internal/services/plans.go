package services

import (
	"errors"
	"fmt"

	"rentdesk/internal/models"
)

var (
	ErrUnknownPlan          = errors.New("unknown plan")
	ErrInvalidBillingCycle  = errors.New("billing cycle must be monthly or annual")
	ErrInvalidPaymentMethod = errors.New("payment method must be bank_transfer, telebirr or credit_card")
)

// Plan identifiers
const (
	PlanBasic        = "basic"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
)

// annualMonths is what an annual subscription costs in months: two months free.
const annualMonths = 10

// PlanCatalog is the static, read-only registry of subscription tiers.
type PlanCatalog struct {
	plans        []models.Plan
	byID         map[string]models.Plan
	instructions map[models.PaymentMethod]models.PaymentInstructions
}

func NewPlanCatalog(currency string, instructions []models.PaymentInstructions) *PlanCatalog {
	plans := []models.Plan{
		newPlan(PlanBasic, "Basic", "For independent landlords getting started.", 500, currency,
			map[models.Feature]int{
				models.FeatureProperties:          5,
				models.FeatureTenants:             25,
				models.FeatureDocuments:           50,
				models.FeatureMaintenanceRequests: 20,
			},
			[]string{"Up to 5 properties", "Up to 25 tenants", "Email support"}),
		newPlan(PlanProfessional, "Professional", "For growing portfolios.", 1500, currency,
			map[models.Feature]int{
				models.FeatureProperties:          models.Unlimited,
				models.FeatureTenants:             models.Unlimited,
				models.FeatureDocuments:           500,
				models.FeatureMaintenanceRequests: models.Unlimited,
			},
			[]string{"Unlimited properties and tenants", "500 documents", "Priority support"}),
		newPlan(PlanEnterprise, "Enterprise", "For property management companies.", 4000, currency,
			map[models.Feature]int{
				models.FeatureProperties:          models.Unlimited,
				models.FeatureTenants:             models.Unlimited,
				models.FeatureDocuments:           models.Unlimited,
				models.FeatureMaintenanceRequests: models.Unlimited,
			},
			[]string{"Everything unlimited", "Dedicated account manager"}),
	}

	c := &PlanCatalog{
		plans:        plans,
		byID:         make(map[string]models.Plan, len(plans)),
		instructions: make(map[models.PaymentMethod]models.PaymentInstructions, len(instructions)),
	}
	for _, p := range plans {
		c.byID[p.ID] = p
	}
	for _, in := range instructions {
		c.instructions[in.Method] = in
	}
	return c
}

func newPlan(id, name, description string, monthly float64, currency string, limits map[models.Feature]int, highlights []string) models.Plan {
	return models.Plan{
		ID:           id,
		Name:         name,
		Description:  description,
		MonthlyPrice: monthly,
		AnnualPrice:  monthly * annualMonths,
		Currency:     currency,
		Limits:       limits,
		Highlights:   highlights,
	}
}

// AllPlans returns a copy of the catalog in display order.
func (c *PlanCatalog) AllPlans() []models.Plan {
	out := make([]models.Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

func (c *PlanCatalog) PlanByID(id string) (models.Plan, error) {
	p, ok := c.byID[id]
	if !ok {
		return models.Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
	}
	return p, nil
}

func (c *PlanCatalog) Price(planID string, cycle models.BillingCycle) (float64, error) {
	p, err := c.PlanByID(planID)
	if err != nil {
		return 0, err
	}
	switch cycle {
	case models.CycleMonthly:
		return p.MonthlyPrice, nil
	case models.CycleAnnual:
		return p.AnnualPrice, nil
	}
	return 0, ErrInvalidBillingCycle
}

// MonthlyRevenue is the recurring revenue one subscription contributes per month.
func (c *PlanCatalog) MonthlyRevenue(planID string, cycle models.BillingCycle) float64 {
	p, ok := c.byID[planID]
	if !ok {
		return 0
	}
	if cycle == models.CycleAnnual {
		return p.AnnualPrice / 12
	}
	return p.MonthlyPrice
}

func (c *PlanCatalog) Limit(planID string, feature models.Feature) (int, error) {
	p, err := c.PlanByID(planID)
	if err != nil {
		return 0, err
	}
	return p.Limit(feature), nil
}

func (c *PlanCatalog) PaymentInstructions(method models.PaymentMethod) (models.PaymentInstructions, error) {
	if !method.Valid() {
		return models.PaymentInstructions{}, ErrInvalidPaymentMethod
	}
	in, ok := c.instructions[method]
	if !ok {
		return models.PaymentInstructions{Method: method}, nil
	}
	return in, nil
}
