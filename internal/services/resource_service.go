package services

import (
	"context"
	"strings"

	"rentdesk/internal/models"
	"rentdesk/internal/repositories"

	"github.com/google/uuid"
)

// ResourceService creates and lists rows of the plan-gated tables. Every create
// goes through the plan-limit guard; deletes are never gated.
type ResourceService interface {
	Create(ctx context.Context, orgID uuid.UUID, feature models.Feature, name string, details models.JSONB) (*models.Resource, error)
	List(ctx context.Context, orgID uuid.UUID, feature models.Feature, limit, offset int) ([]*models.Resource, error)
	Delete(ctx context.Context, orgID uuid.UUID, feature models.Feature, id uuid.UUID) error
}

type resourceService struct {
	store repositories.Store
	guard PlanLimitService
	now   Clock
}

func NewResourceService(store repositories.Store, guard PlanLimitService, clock Clock) ResourceService {
	if clock == nil {
		clock = systemClock
	}
	return &resourceService{store: store, guard: guard, now: clock}
}

func (s *resourceService) Create(ctx context.Context, orgID uuid.UUID, feature models.Feature, name string, details models.JSONB) (*models.Resource, error) {
	resource := &models.Resource{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Feature:        feature,
		Name:           strings.TrimSpace(name),
		Details:        details,
		CreatedAt:      s.now(),
	}

	err := s.guard.CreateWithinLimit(ctx, orgID, feature, func(r *repositories.Repos) error {
		return r.Resources.Create(ctx, resource)
	})
	if err != nil {
		return nil, err
	}
	return resource, nil
}

func (s *resourceService) List(ctx context.Context, orgID uuid.UUID, feature models.Feature, limit, offset int) ([]*models.Resource, error) {
	if !feature.Valid() {
		return nil, ErrUnknownFeature
	}
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	return s.store.Repos().Resources.List(ctx, orgID, feature, limit, offset)
}

func (s *resourceService) Delete(ctx context.Context, orgID uuid.UUID, feature models.Feature, id uuid.UUID) error {
	if !feature.Valid() {
		return ErrUnknownFeature
	}
	return s.store.Repos().Resources.Delete(ctx, orgID, feature, id)
}
