package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the review state of a subscription request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending_verification"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	return s == RequestPending || s == RequestApproved || s == RequestRejected
}

// RequestKind distinguishes a plan change from paying for the current plan again.
type RequestKind string

const (
	KindUpgrade RequestKind = "upgrade"
	KindRenewal RequestKind = "renewal"
)

// SubscriptionRequest is a plan change or renewal awaiting manual verification.
type SubscriptionRequest struct {
	ID                 uuid.UUID     `json:"id" db:"id"`
	OrganizationID     uuid.UUID     `json:"organization_id" db:"organization_id"`
	PlanID             string        `json:"plan_id" db:"plan_id"`
	Kind               RequestKind   `json:"kind" db:"kind"`
	Amount             float64       `json:"amount" db:"amount"`
	Currency           string        `json:"currency" db:"currency"`
	BillingCycle       BillingCycle  `json:"billing_cycle" db:"billing_cycle"`
	PaymentMethod      PaymentMethod `json:"payment_method" db:"payment_method"`
	ReceiptKey         string        `json:"receipt_key" db:"receipt_key"`
	ReceiptSHA256      string        `json:"receipt_sha256" db:"receipt_sha256"`
	ReceiptContentType string        `json:"receipt_content_type" db:"receipt_content_type"`
	Status             RequestStatus `json:"status" db:"status"`
	RejectionReason    *string       `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ReviewedBy         *uuid.UUID    `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt         *time.Time    `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// SubscriptionStatusView is what a landlord sees about their own subscription.
type SubscriptionStatusView struct {
	OrganizationID   uuid.UUID            `json:"organization_id"`
	Status           SubscriptionStatus   `json:"status"`
	Plan             Plan                 `json:"plan"`
	BillingCycle     BillingCycle         `json:"billing_cycle"`
	TrialEndDate     *time.Time           `json:"trial_end_date,omitempty"`
	NextRenewalDate  *time.Time           `json:"next_renewal_date,omitempty"`
	DaysUntilRenewal *int                 `json:"daysUntilRenewal,omitempty"`
	DaysOverdue      int                  `json:"daysOverdue"`
	TrialDaysLeft    *int                 `json:"trialDaysLeft,omitempty"`
	PendingRequest   *SubscriptionRequest `json:"pending_request,omitempty"`
	Usage            []UsageSnapshot      `json:"usage,omitempty"`
}

// VerificationAction is an admin decision on a pending request.
type VerificationAction string

const (
	ActionApprove VerificationAction = "approve"
	ActionReject  VerificationAction = "reject"
)
