package services

import (
	"context"
	"errors"
	"fmt"

	"rentdesk/internal/metrics"
	"rentdesk/internal/models"
	"rentdesk/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrSubscriptionOverdue blocks everything except the renewal flow.
	ErrSubscriptionOverdue = errors.New("subscription is overdue")
	// ErrSubscriptionInactive is returned for suspended and cancelled organizations.
	ErrSubscriptionInactive = errors.New("subscription is not active")
	ErrUnknownFeature       = errors.New("unknown feature")
)

// PlanLimitExceededError carries the payload clients render for an upgrade prompt.
type PlanLimitExceededError struct {
	Feature      models.Feature `json:"feature"`
	Plan         string         `json:"plan"`
	CurrentUsage int            `json:"currentUsage"`
	Limit        int            `json:"limit"`
}

func (e *PlanLimitExceededError) Error() string {
	return fmt.Sprintf("plan %s allows %d %s, organization already has %d", e.Plan, e.Limit, e.Feature, e.CurrentUsage)
}

// PlanLimitService decides whether an organization may create another row of a
// gated feature.
type PlanLimitService interface {
	// CreateWithinLimit locks the organization, recounts usage and runs create
	// in the same transaction only when the plan allows one more row.
	CreateWithinLimit(ctx context.Context, orgID uuid.UUID, feature models.Feature, create func(r *repositories.Repos) error) error
	// Check is the read-only variant; it never locks.
	Check(ctx context.Context, orgID uuid.UUID, feature models.Feature) (*models.UsageSnapshot, error)
	Usage(ctx context.Context, orgID uuid.UUID) ([]models.UsageSnapshot, error)
}

type planLimitService struct {
	store   repositories.Store
	catalog *PlanCatalog
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewPlanLimitService(store repositories.Store, catalog *PlanCatalog, m *metrics.Metrics, logger zerolog.Logger) PlanLimitService {
	return &planLimitService{
		store:   store,
		catalog: catalog,
		metrics: m,
		logger:  logger.With().Str("component", "plan_limit").Logger(),
	}
}

// gate rejects organizations that may not create anything at all.
func gate(org *models.Organization) error {
	switch org.SubscriptionStatus {
	case models.StatusOverdue:
		return ErrSubscriptionOverdue
	case models.StatusSuspended, models.StatusCancelled:
		return ErrSubscriptionInactive
	}
	return nil
}

func (s *planLimitService) CreateWithinLimit(ctx context.Context, orgID uuid.UUID, feature models.Feature, create func(r *repositories.Repos) error) error {
	if !feature.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}

	var plan string
	err := s.store.InTx(ctx, func(r *repositories.Repos) error {
		org, err := r.Organizations.GetByIDForUpdate(ctx, orgID)
		if err != nil {
			return err
		}
		plan = org.SubscriptionPlan
		if err := gate(org); err != nil {
			return err
		}

		limit, err := s.catalog.Limit(org.SubscriptionPlan, feature)
		if err != nil {
			return err
		}
		if limit != models.Unlimited {
			count, err := r.Usage.Count(ctx, orgID, feature)
			if err != nil {
				return fmt.Errorf("count %s: %w", feature, err)
			}
			if count >= limit {
				return &PlanLimitExceededError{Feature: feature, Plan: org.SubscriptionPlan, CurrentUsage: count, Limit: limit}
			}
		}

		return create(r)
	})

	var limitErr *PlanLimitExceededError
	switch {
	case err == nil:
		s.metrics.GuardDecision(string(feature), plan, true)
	case errors.As(err, &limitErr):
		s.metrics.GuardDecision(string(feature), plan, false)
		s.logger.Info().
			Str("organization_id", orgID.String()).
			Str("feature", string(feature)).
			Str("plan", limitErr.Plan).
			Int("current_usage", limitErr.CurrentUsage).
			Int("limit", limitErr.Limit).
			Msg("plan limit reached")
	}
	return err
}

func (s *planLimitService) Check(ctx context.Context, orgID uuid.UUID, feature models.Feature) (*models.UsageSnapshot, error) {
	if !feature.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}
	repos := s.store.Repos()

	org, err := repos.Organizations.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	limit, err := s.catalog.Limit(org.SubscriptionPlan, feature)
	if err != nil {
		return nil, err
	}
	count, err := repos.Usage.Count(ctx, orgID, feature)
	if err != nil {
		return nil, err
	}

	snap := snapshot(feature, count, limit)
	return &snap, nil
}

func (s *planLimitService) Usage(ctx context.Context, orgID uuid.UUID) ([]models.UsageSnapshot, error) {
	repos := s.store.Repos()

	org, err := repos.Organizations.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	plan, err := s.catalog.PlanByID(org.SubscriptionPlan)
	if err != nil {
		return nil, err
	}
	counts, err := repos.Usage.Snapshot(ctx, orgID)
	if err != nil {
		return nil, err
	}

	out := make([]models.UsageSnapshot, 0, len(models.Features))
	for _, f := range models.Features {
		out = append(out, snapshot(f, counts[f], plan.Limit(f)))
	}
	return out, nil
}

func snapshot(feature models.Feature, count, limit int) models.UsageSnapshot {
	return models.UsageSnapshot{
		Feature:      feature,
		CurrentUsage: count,
		Limit:        limit,
		Unlimited:    limit == models.Unlimited,
	}
}
