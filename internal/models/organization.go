package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the lifecycle state of an organization's subscription.
type SubscriptionStatus string

const (
	StatusTrial     SubscriptionStatus = "trial"
	StatusActive    SubscriptionStatus = "active"
	StatusOverdue   SubscriptionStatus = "overdue"
	StatusSuspended SubscriptionStatus = "suspended"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// BillingCycle is how often an organization pays.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleAnnual  BillingCycle = "annual"
)

func (c BillingCycle) Valid() bool {
	return c == CycleMonthly || c == CycleAnnual
}

// Organization is the tenant root: a landlord business and its subscription record.
type Organization struct {
	ID                     uuid.UUID           `json:"id" db:"id"`
	Name                   string              `json:"name" db:"name"`
	ContactEmail           string              `json:"contact_email" db:"contact_email"`
	ContactPhone           *string             `json:"contact_phone,omitempty" db:"contact_phone"`
	SubscriptionStatus     SubscriptionStatus  `json:"subscription_status" db:"subscription_status"`
	SubscriptionPlan       string              `json:"subscription_plan" db:"subscription_plan"`
	BillingCycle           BillingCycle        `json:"billing_cycle" db:"billing_cycle"`
	TrialEndDate           *time.Time          `json:"trial_end_date,omitempty" db:"trial_end_date"`
	NextRenewalDate        *time.Time          `json:"next_renewal_date,omitempty" db:"next_renewal_date"`
	StatusBeforeSuspension *SubscriptionStatus `json:"-" db:"status_before_suspension"`
	StatusChangedAt        time.Time           `json:"status_changed_at" db:"status_changed_at"`
	CreatedAt              time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at" db:"updated_at"`
}

// OrganizationFilters narrows admin organization listings.
type OrganizationFilters struct {
	Status *SubscriptionStatus `json:"status"`
	Plan   *string             `json:"plan"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}
