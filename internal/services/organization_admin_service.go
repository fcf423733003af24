package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentdesk/internal/caching"
	"rentdesk/internal/events"
	"rentdesk/internal/metrics"
	"rentdesk/internal/models"
	"rentdesk/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrOrganizationNameRequired = errors.New("organization name is required")
	ErrCannotImpersonateAdmin   = errors.New("admin accounts cannot be impersonated")
	ErrInvalidToggleAction      = errors.New("action must be suspend or reactivate")
)

// Toggle actions
const (
	ToggleSuspend    = "suspend"
	ToggleReactivate = "reactivate"
)

type CreateOrganizationInput struct {
	Name          string
	ContactEmail  string
	ContactPhone  *string
	OwnerName     string
	OwnerEmail    string
	OwnerPassword string
}

// OrganizationAdminService covers the platform admin's organization and user actions.
// Every mutation is audit-logged in the same transaction.
type OrganizationAdminService interface {
	CreateOrganization(ctx context.Context, input CreateOrganizationInput, actorID *uuid.UUID) (*models.Organization, *models.User, error)
	ListOrganizations(ctx context.Context, filters *models.OrganizationFilters) ([]*models.Organization, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	ToggleStatus(ctx context.Context, orgID, adminID uuid.UUID, action string, reason *string) (*models.Organization, error)
	Suspend(ctx context.Context, orgID, adminID uuid.UUID, reason *string) (*models.Organization, error)
	Reactivate(ctx context.Context, orgID, adminID uuid.UUID, reason *string) (*models.Organization, error)
	ResetPassword(ctx context.Context, userID uuid.UUID, newPassword string, adminID uuid.UUID) error
	Impersonate(ctx context.Context, userID, adminID uuid.UUID) (*models.TokenResponse, error)
}

type organizationAdminService struct {
	store            repositories.Store
	subscriptions    SubscriptionService
	tokens           *TokenIssuer
	impersonationTTL time.Duration
	cache            caching.CacheService
	publisher        events.Publisher
	metrics          *metrics.Metrics
	logger           zerolog.Logger
	now              Clock
}

type OrganizationAdminDeps struct {
	Store            repositories.Store
	Subscriptions    SubscriptionService
	Tokens           *TokenIssuer
	ImpersonationTTL time.Duration
	Cache            caching.CacheService
	Publisher        events.Publisher
	Metrics          *metrics.Metrics
	Logger           zerolog.Logger
	Clock            Clock
}

func NewOrganizationAdminService(deps OrganizationAdminDeps) OrganizationAdminService {
	if deps.Clock == nil {
		deps.Clock = systemClock
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	if deps.ImpersonationTTL <= 0 {
		deps.ImpersonationTTL = 15 * time.Minute
	}
	return &organizationAdminService{
		store:            deps.Store,
		subscriptions:    deps.Subscriptions,
		tokens:           deps.Tokens,
		impersonationTTL: deps.ImpersonationTTL,
		cache:            deps.Cache,
		publisher:        deps.Publisher,
		metrics:          deps.Metrics,
		logger:           deps.Logger.With().Str("component", "organization_admin").Logger(),
		now:              deps.Clock,
	}
}

func (s *organizationAdminService) CreateOrganization(ctx context.Context, input CreateOrganizationInput, actorID *uuid.UUID) (*models.Organization, *models.User, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, ErrOrganizationNameRequired
	}
	hash, err := hashPassword(input.OwnerPassword)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	org := &models.Organization{
		ID:           uuid.New(),
		Name:         name,
		ContactEmail: normalizeEmail(input.ContactEmail),
		ContactPhone: input.ContactPhone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.subscriptions.StartTrial(org)

	owner := &models.User{
		ID:             uuid.New(),
		OrganizationID: &org.ID,
		Email:          normalizeEmail(input.OwnerEmail),
		PasswordHash:   hash,
		FullName:       strings.TrimSpace(input.OwnerName),
		Role:           models.RoleLandlord,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.store.InTx(ctx, func(r *repositories.Repos) error {
		if err := r.Organizations.Create(ctx, org); err != nil {
			return err
		}
		if err := r.Users.Create(ctx, owner); err != nil {
			return err
		}
		if err := writeAudit(ctx, r.AuditLogs, AuditEntry{
			OrganizationID: &org.ID,
			EntityType:     EntityOrganization,
			EntityID:       org.ID.String(),
			Action:         models.AuditOrganizationCreated,
			ActorID:        actorID,
			NewValues:      models.JSONB{"name": org.Name, "owner_email": owner.Email},
		}, now); err != nil {
			return err
		}
		return writeAudit(ctx, r.AuditLogs, AuditEntry{
			OrganizationID: &org.ID,
			EntityType:     EntityOrganization,
			EntityID:       org.ID.String(),
			Action:         models.AuditTrialStarted,
			ActorID:        actorID,
			NewValues:      organizationValues(org),
		}, now)
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().Str("organization_id", org.ID.String()).Str("name", org.Name).Msg("organization created on trial")
	s.afterCommit(ctx)
	return org, owner, nil
}

func (s *organizationAdminService) ListOrganizations(ctx context.Context, filters *models.OrganizationFilters) ([]*models.Organization, error) {
	if filters == nil {
		filters = &models.OrganizationFilters{}
	}
	if filters.Limit <= 0 || filters.Limit > 1000 {
		filters.Limit = 50
	}
	return s.store.Repos().Organizations.List(ctx, filters)
}

func (s *organizationAdminService) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return s.store.Repos().Organizations.GetByID(ctx, id)
}

func (s *organizationAdminService) ToggleStatus(ctx context.Context, orgID, adminID uuid.UUID, action string, reason *string) (*models.Organization, error) {
	switch action {
	case ToggleSuspend:
		return s.Suspend(ctx, orgID, adminID, reason)
	case ToggleReactivate:
		return s.Reactivate(ctx, orgID, adminID, reason)
	}
	return nil, ErrInvalidToggleAction
}

// Suspend is a no-op for an organization that is already suspended.
func (s *organizationAdminService) Suspend(ctx context.Context, orgID, adminID uuid.UUID, reason *string) (*models.Organization, error) {
	return s.setStatus(ctx, orgID, adminID, models.StatusSuspended, models.AuditOrganizationSuspended, events.OrganizationSuspended, reason)
}

// Reactivate is a no-op for an organization that is already active. A trial that
// was suspended resumes as a trial.
func (s *organizationAdminService) Reactivate(ctx context.Context, orgID, adminID uuid.UUID, reason *string) (*models.Organization, error) {
	return s.setStatus(ctx, orgID, adminID, models.StatusActive, models.AuditOrganizationReactivated, events.OrganizationReactivated, reason)
}

func (s *organizationAdminService) setStatus(ctx context.Context, orgID, adminID uuid.UUID, to models.SubscriptionStatus, auditAction, eventType string, reason *string) (*models.Organization, error) {
	now := s.now()
	var (
		org     *models.Organization
		from    models.SubscriptionStatus
		changed bool
	)
	err := s.store.InTx(ctx, func(r *repositories.Repos) error {
		var err error
		org, err = r.Organizations.GetByIDForUpdate(ctx, orgID)
		if err != nil {
			return err
		}
		from = org.SubscriptionStatus
		if from == to {
			return nil
		}
		if to == models.StatusActive {
			// Reactivation only lifts a suspension; payments go through verification.
			if from != models.StatusSuspended {
				return ErrInvalidTransition
			}
			to = ReactivationTarget(org)
		}

		oldValues := organizationValues(org)
		if err := Transition(org, to, now); err != nil {
			return err
		}
		if err := r.Organizations.UpdateSubscription(ctx, org, from); err != nil {
			return err
		}
		changed = true

		return writeAudit(ctx, r.AuditLogs, AuditEntry{
			OrganizationID: &orgID,
			EntityType:     EntityOrganization,
			EntityID:       orgID.String(),
			Action:         auditAction,
			ActorID:        &adminID,
			Reason:         reason,
			OldValues:      oldValues,
			NewValues:      organizationValues(org),
		}, now)
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return org, nil
	}

	s.metrics.AdminAction(auditAction)
	s.metrics.Transition(string(from), string(to))
	s.logger.Info().
		Str("organization_id", orgID.String()).
		Str("admin_id", adminID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("organization status changed by admin")
	s.afterCommit(ctx, events.New(eventType, orgID, map[string]interface{}{"from": string(from)}))
	return org, nil
}

func (s *organizationAdminService) ResetPassword(ctx context.Context, userID uuid.UUID, newPassword string, adminID uuid.UUID) error {
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.store.InTx(ctx, func(r *repositories.Repos) error {
		user, err := r.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := r.Users.UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		return writeAudit(ctx, r.AuditLogs, AuditEntry{
			OrganizationID: user.OrganizationID,
			EntityType:     EntityUser,
			EntityID:       userID.String(),
			Action:         models.AuditPasswordReset,
			ActorID:        &adminID,
		}, now)
	})
	if err != nil {
		return err
	}

	s.metrics.AdminAction(models.AuditPasswordReset)
	s.logger.Info().Str("user_id", userID.String()).Str("admin_id", adminID.String()).Msg("password reset by admin")
	return nil
}

func (s *organizationAdminService) Impersonate(ctx context.Context, userID, adminID uuid.UUID) (*models.TokenResponse, error) {
	user, err := s.store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleAdmin {
		return nil, ErrCannotImpersonateAdmin
	}

	token, err := s.tokens.Issue(user, &adminID, s.impersonationTTL)
	if err != nil {
		return nil, err
	}

	err = writeAudit(ctx, s.store.Repos().AuditLogs, AuditEntry{
		OrganizationID: user.OrganizationID,
		EntityType:     EntityUser,
		EntityID:       userID.String(),
		Action:         models.AuditImpersonation,
		ActorID:        &adminID,
		NewValues:      models.JSONB{"expires_in": token.ExpiresIn},
	}, s.now())
	if err != nil {
		// No audit trail, no token.
		return nil, err
	}

	s.metrics.AdminAction(models.AuditImpersonation)
	s.logger.Warn().Str("user_id", userID.String()).Str("admin_id", adminID.String()).Msg("impersonation token issued")
	return token, nil
}

func (s *organizationAdminService) afterCommit(ctx context.Context, evs ...events.Event) {
	publishAfterCommit(ctx, s.cache, s.publisher, s.logger, evs...)
}
