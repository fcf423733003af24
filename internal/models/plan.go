package models

// Feature is a quota-bearing resource type.
type Feature string

const (
	FeatureProperties          Feature = "properties"
	FeatureTenants             Feature = "tenants"
	FeatureDocuments           Feature = "documents"
	FeatureMaintenanceRequests Feature = "maintenance_requests"
)

// Features lists every gated feature in display order.
var Features = []Feature{
	FeatureProperties,
	FeatureTenants,
	FeatureDocuments,
	FeatureMaintenanceRequests,
}

func (f Feature) Valid() bool {
	for _, known := range Features {
		if f == known {
			return true
		}
	}
	return false
}

// Unlimited marks a limit that never blocks.
const Unlimited = -1

// Plan is immutable reference data describing a subscription tier.
type Plan struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	MonthlyPrice float64         `json:"monthly_price"`
	AnnualPrice  float64         `json:"annual_price"`
	Currency     string          `json:"currency"`
	Limits       map[Feature]int `json:"limits"`
	Highlights   []string        `json:"highlights"`
}

// Limit returns the plan's quota for a feature. Absent features are unlimited.
func (p Plan) Limit(f Feature) int {
	limit, ok := p.Limits[f]
	if !ok {
		return Unlimited
	}
	return limit
}

// UsageSnapshot is computed per request and never persisted.
type UsageSnapshot struct {
	Feature      Feature `json:"feature"`
	CurrentUsage int     `json:"currentUsage"`
	Limit        int     `json:"limit"`
	Unlimited    bool    `json:"unlimited"`
}

// PaymentMethod is how a landlord paid for a requested plan.
type PaymentMethod string

const (
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentTelebirr     PaymentMethod = "telebirr"
	PaymentCreditCard   PaymentMethod = "credit_card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentBankTransfer, PaymentTelebirr, PaymentCreditCard:
		return true
	}
	return false
}

// PaymentInstructions are static account details shown before a receipt upload.
type PaymentInstructions struct {
	Method        PaymentMethod `json:"method"`
	AccountName   string        `json:"account_name"`
	AccountNumber string        `json:"account_number"`
	BankName      string        `json:"bank_name,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}
