package services

import (
	"context"
	"errors"
	"time"

	"rentdesk/internal/models"
	"rentdesk/internal/repositories"

	"github.com/google/uuid"
)

// Entity types recorded in audit logs
const (
	EntityOrganization        = "organization"
	EntitySubscriptionRequest = "subscription_request"
	EntityUser                = "user"
)

type AuditLogsService interface {
	// Create audit log entry
	LogActivity(ctx context.Context, entry AuditEntry) error

	// Query audit logs
	ListAuditLogs(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error)

	// Validation methods
	ValidateAuditFilters(filters *models.AuditLogFilters) error
}

// AuditEntry is what callers know about a change; IDs and timestamps are filled in.
type AuditEntry struct {
	OrganizationID *uuid.UUID
	EntityType     string
	EntityID       string
	Action         string
	ActorID        *uuid.UUID
	Reason         *string
	OldValues      models.JSONB
	NewValues      models.JSONB
}

type auditLogsService struct {
	auditLogsRepo repositories.AuditLogsRepository
	now           Clock
}

func NewAuditLogsService(auditLogsRepo repositories.AuditLogsRepository, clock Clock) AuditLogsService {
	if clock == nil {
		clock = systemClock
	}
	return &auditLogsService{
		auditLogsRepo: auditLogsRepo,
		now:           clock,
	}
}

// LogActivity creates a new audit log entry with validation
func (s *auditLogsService) LogActivity(ctx context.Context, entry AuditEntry) error {
	return writeAudit(ctx, s.auditLogsRepo, entry, s.now())
}

// writeAudit appends entry through repo, which may be bound to a transaction.
func writeAudit(ctx context.Context, repo repositories.AuditLogsRepository, entry AuditEntry, at time.Time) error {
	if entry.EntityType == "" {
		return errors.New("entity_type is required")
	}
	if entry.Action == "" {
		return errors.New("action is required")
	}

	return repo.Create(ctx, &models.AuditLog{
		ID:             uuid.New(),
		OrganizationID: entry.OrganizationID,
		EntityType:     entry.EntityType,
		EntityID:       entry.EntityID,
		Action:         entry.Action,
		OldValues:      entry.OldValues,
		NewValues:      entry.NewValues,
		ActorID:        entry.ActorID,
		Reason:         entry.Reason,
		CreatedAt:      at,
	})
}

// ListAuditLogs retrieves multiple audit log entries with filtering
func (s *auditLogsService) ListAuditLogs(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	if filters == nil {
		filters = &models.AuditLogFilters{Limit: 50} // Default limit
	}
	if err := s.ValidateAuditFilters(filters); err != nil {
		return nil, err
	}
	if filters.Limit <= 0 || filters.Limit > 1000 {
		filters.Limit = 50
	}

	return s.auditLogsRepo.List(ctx, filters)
}

// ValidateAuditFilters performs security and performance validation on audit filters
func (s *auditLogsService) ValidateAuditFilters(filters *models.AuditLogFilters) error {
	if filters == nil {
		return nil
	}

	if filters.StartDate != nil && filters.EndDate != nil {
		if filters.EndDate.Before(*filters.StartDate) {
			return errors.New("end_date cannot be before start_date")
		}
		// Limit date range to prevent excessive data extraction
		if filters.EndDate.Sub(*filters.StartDate) > 365*24*time.Hour {
			return errors.New("date range cannot exceed 1 year")
		}
	}

	if filters.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	if filters.Offset > 100000 {
		return errors.New("offset too large")
	}

	return nil
}

// organizationValues is the audit snapshot of an organization's subscription fields.
func organizationValues(org *models.Organization) models.JSONB {
	values := models.JSONB{
		"subscription_status": string(org.SubscriptionStatus),
		"subscription_plan":   org.SubscriptionPlan,
		"billing_cycle":       string(org.BillingCycle),
	}
	if org.TrialEndDate != nil {
		values["trial_end_date"] = org.TrialEndDate.Format(time.RFC3339)
	}
	if org.NextRenewalDate != nil {
		values["next_renewal_date"] = org.NextRenewalDate.Format(time.RFC3339)
	}
	return values
}
