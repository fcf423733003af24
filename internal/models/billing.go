package models

import "time"

// BillingOverview is a read-only rollup over all organizations.
type BillingOverview struct {
	MRR                  float64                    `json:"mrr"`
	Currency             string                     `json:"currency"`
	TotalOrganizations   int                        `json:"total_organizations"`
	StatusBreakdown      map[SubscriptionStatus]int `json:"status_breakdown"`
	PlanBreakdown        map[string]int             `json:"plan_breakdown"`
	PendingVerifications int                        `json:"pending_verifications"`
	ChurnRate            float64                    `json:"churn_rate"`
	GeneratedAt          time.Time                  `json:"generated_at"`
}

// OrganizationBillingRow is the minimal projection the overview is computed from.
type OrganizationBillingRow struct {
	Status          SubscriptionStatus
	Plan            string
	Cycle           BillingCycle
	CreatedAt       time.Time
	StatusChangedAt time.Time
}
