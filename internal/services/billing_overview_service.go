package services

import (
	"context"
	"math"
	"time"

	"rentdesk/internal/caching"
	"rentdesk/internal/models"
	"rentdesk/internal/repositories"

	"github.com/rs/zerolog"
)

// churnWindow is the lookback used for the churn rate.
const churnWindow = 30 * 24 * time.Hour

// BillingOverviewService computes read-only revenue rollups. It never mutates state.
type BillingOverviewService interface {
	Overview(ctx context.Context) (*models.BillingOverview, error)
}

type billingOverviewService struct {
	store    repositories.Store
	catalog  *PlanCatalog
	cache    caching.CacheService
	ttl      time.Duration
	currency string
	logger   zerolog.Logger
	now      Clock
}

func NewBillingOverviewService(store repositories.Store, catalog *PlanCatalog, cache caching.CacheService, ttl time.Duration, currency string, logger zerolog.Logger, clock Clock) BillingOverviewService {
	if clock == nil {
		clock = systemClock
	}
	return &billingOverviewService{
		store:    store,
		catalog:  catalog,
		cache:    cache,
		ttl:      ttl,
		currency: currency,
		logger:   logger.With().Str("component", "billing_overview").Logger(),
		now:      clock,
	}
}

func (s *billingOverviewService) Overview(ctx context.Context) (*models.BillingOverview, error) {
	if s.cache != nil {
		cached, err := s.cache.GetBillingOverview(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("billing overview cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	repos := s.store.Repos()
	rows, err := repos.Organizations.BillingRows(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := repos.SubscriptionRequests.CountByStatus(ctx, models.RequestPending)
	if err != nil {
		return nil, err
	}

	overview := computeOverview(rows, pending, s.catalog, s.currency, s.now())

	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.SetBillingOverview(ctx, overview, s.ttl); err != nil {
			s.logger.Warn().Err(err).Msg("billing overview cache write failed")
		}
	}
	return overview, nil
}

// computeOverview derives the rollup from organization rows.
//
// MRR counts active subscriptions only, annual ones at a twelfth of their price.
// Churn is the share of organizations that existed at the start of the window
// and became cancelled or suspended inside it.
func computeOverview(rows []models.OrganizationBillingRow, pending int, catalog *PlanCatalog, currency string, now time.Time) *models.BillingOverview {
	overview := &models.BillingOverview{
		Currency:             currency,
		TotalOrganizations:   len(rows),
		StatusBreakdown:      make(map[models.SubscriptionStatus]int),
		PlanBreakdown:        make(map[string]int),
		PendingVerifications: pending,
		GeneratedAt:          now,
	}

	windowStart := now.Add(-churnWindow)
	var base, churned int
	for _, row := range rows {
		overview.StatusBreakdown[row.Status]++
		overview.PlanBreakdown[row.Plan]++

		if row.Status == models.StatusActive {
			overview.MRR += catalog.MonthlyRevenue(row.Plan, row.Cycle)
		}

		if !row.CreatedAt.Before(windowStart) {
			continue
		}
		lost := row.Status == models.StatusCancelled || row.Status == models.StatusSuspended
		if lost && row.StatusChangedAt.Before(windowStart) {
			// Already gone before the window opened.
			continue
		}
		base++
		if lost {
			churned++
		}
	}

	overview.MRR = math.Round(overview.MRR*100) / 100
	if base > 0 {
		overview.ChurnRate = math.Round(float64(churned)/float64(base)*10000) / 10000
	}
	return overview
}
