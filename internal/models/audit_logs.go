package models

import (
	"time"

	"github.com/google/uuid"
)

// JSONB holds free-form values stored in jsonb columns.
type JSONB map[string]interface{}

// AuditLog is an append-only record of who changed what.
type AuditLog struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty" db:"organization_id"`
	EntityType     string     `json:"entity_type" db:"entity_type"`
	EntityID       string     `json:"entity_id" db:"entity_id"`
	Action         string     `json:"action" db:"action"`
	OldValues      JSONB      `json:"old_values,omitempty" db:"old_values"`
	NewValues      JSONB      `json:"new_values,omitempty" db:"new_values"`
	ActorID        *uuid.UUID `json:"actor_id,omitempty" db:"actor_id"`
	Reason         *string    `json:"reason,omitempty" db:"reason"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// Audit actions
const (
	AuditTrialStarted            = "TRIAL_STARTED"
	AuditRequestSubmitted        = "REQUEST_SUBMITTED"
	AuditRequestApproved         = "REQUEST_APPROVED"
	AuditRequestRejected         = "REQUEST_REJECTED"
	AuditStatusTransition        = "STATUS_TRANSITION"
	AuditOrganizationSuspended   = "ORGANIZATION_SUSPENDED"
	AuditOrganizationReactivated = "ORGANIZATION_REACTIVATED"
	AuditSubscriptionCancelled   = "SUBSCRIPTION_CANCELLED"
	AuditPasswordReset           = "PASSWORD_RESET"
	AuditImpersonation           = "IMPERSONATION_STARTED"
	AuditImpersonatedRequest     = "IMPERSONATED_REQUEST"
	AuditOrganizationCreated     = "ORGANIZATION_CREATED"
)

// AuditLogFilters represents filters for querying audit logs
type AuditLogFilters struct {
	OrganizationID *uuid.UUID `json:"organization_id"`
	EntityType     *string    `json:"entity_type"`
	Action         *string    `json:"action"`
	ActorID        *uuid.UUID `json:"actor_id"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	Limit          int        `json:"limit"`
	Offset         int        `json:"offset"`
}
