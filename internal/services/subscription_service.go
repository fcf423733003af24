package services

import (
	"context"
	"errors"
	"fmt"
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
	ErrVerificationPending       = errors.New("a subscription request is already awaiting verification")
	ErrRequestAlreadyReviewed    = errors.New("subscription request has already been reviewed")
	ErrInvalidVerificationAction = errors.New("action must be approve or reject")
	ErrRejectionReasonRequired   = errors.New("a reason is required when rejecting")
)

// lifecycleBatch caps how many organizations one lifecycle pass touches.
const lifecycleBatch = 500

// SubscriptionSettings are the tunables of the subscription workflow.
type SubscriptionSettings struct {
	TrialPeriod      time.Duration
	OverdueGrace     time.Duration
	MaxReceiptBytes  int64
	ReceiptURLExpiry time.Duration
}

// SubmitRequestInput is one atomic upgrade or renewal submission.
type SubmitRequestInput struct {
	PlanID        string
	BillingCycle  models.BillingCycle
	PaymentMethod models.PaymentMethod
	Receipt       *ReceiptUpload
}

type SubscriptionService interface {
	// StartTrial puts a new organization on the basic plan's free trial.
	StartTrial(org *models.Organization)
	GetStatus(ctx context.Context, orgID uuid.UUID) (*models.SubscriptionStatusView, error)
	SubmitRequest(ctx context.Context, orgID, actorID uuid.UUID, input SubmitRequestInput) (*models.SubscriptionRequest, error)
	ListRequests(ctx context.Context, filters *repositories.SubscriptionRequestFilters) ([]*models.SubscriptionRequest, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*models.SubscriptionRequest, error)
	// ReceiptURL returns a short-lived download link for a request's receipt.
	ReceiptURL(ctx context.Context, id uuid.UUID) (string, error)
	Verify(ctx context.Context, requestID, adminID uuid.UUID, action models.VerificationAction, reason string) (*models.SubscriptionRequest, error)
	Cancel(ctx context.Context, orgID, actorID uuid.UUID, reason *string) (*models.Organization, error)
	// AdvanceLifecycle moves lapsed trials and renewals to overdue and long-overdue
	// organizations to suspended. It returns how many organizations changed.
	AdvanceLifecycle(ctx context.Context) (int, error)
}

type subscriptionService struct {
	store     repositories.Store
	catalog   *PlanCatalog
	guard     PlanLimitService
	receipts  ReceiptStore
	cache     caching.CacheService
	publisher events.Publisher
	metrics   *metrics.Metrics
	settings  SubscriptionSettings
	logger    zerolog.Logger
	now       Clock
}

type SubscriptionDeps struct {
	Store     repositories.Store
	Catalog   *PlanCatalog
	Guard     PlanLimitService
	Receipts  ReceiptStore
	Cache     caching.CacheService
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	Clock     Clock
}

func NewSubscriptionService(deps SubscriptionDeps, settings SubscriptionSettings) SubscriptionService {
	if deps.Clock == nil {
		deps.Clock = systemClock
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	return &subscriptionService{
		store:     deps.Store,
		catalog:   deps.Catalog,
		guard:     deps.Guard,
		receipts:  deps.Receipts,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		settings:  settings,
		logger:    deps.Logger.With().Str("component", "subscription").Logger(),
		now:       deps.Clock,
	}
}

func (s *subscriptionService) StartTrial(org *models.Organization) {
	now := s.now()
	trialEnd := now.Add(s.settings.TrialPeriod)

	org.SubscriptionStatus = models.StatusTrial
	org.SubscriptionPlan = PlanBasic
	org.BillingCycle = models.CycleMonthly
	org.TrialEndDate = &trialEnd
	org.NextRenewalDate = nil
	org.StatusBeforeSuspension = nil
	org.StatusChangedAt = now
}

func (s *subscriptionService) GetStatus(ctx context.Context, orgID uuid.UUID) (*models.SubscriptionStatusView, error) {
	repos := s.store.Repos()

	org, err := repos.Organizations.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	plan, err := s.catalog.PlanByID(org.SubscriptionPlan)
	if err != nil {
		return nil, err
	}

	pending, err := repos.SubscriptionRequests.GetPendingByOrganization(ctx, orgID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	usage, err := s.guard.Usage(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &models.SubscriptionStatusView{
		OrganizationID:   org.ID,
		Status:           org.SubscriptionStatus,
		Plan:             plan,
		BillingCycle:     org.BillingCycle,
		TrialEndDate:     org.TrialEndDate,
		NextRenewalDate:  org.NextRenewalDate,
		DaysUntilRenewal: DaysUntilRenewal(org, now),
		DaysOverdue:      DaysOverdue(org, now),
		TrialDaysLeft:    TrialDaysLeft(org, now),
		PendingRequest:   pending,
		Usage:            usage,
	}, nil
}

func (s *subscriptionService) SubmitRequest(ctx context.Context, orgID, actorID uuid.UUID, input SubmitRequestInput) (*models.SubscriptionRequest, error) {
	amount, err := s.catalog.Price(input.PlanID, input.BillingCycle)
	if err != nil {
		return nil, err
	}
	if !input.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	rcpt, err := readReceipt(input.Receipt, s.settings.MaxReceiptBytes)
	if err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	org, err := repos.Organizations.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.SubscriptionStatus == models.StatusSuspended || org.SubscriptionStatus == models.StatusCancelled {
		return nil, ErrSubscriptionInactive
	}
	if _, err := repos.SubscriptionRequests.GetPendingByOrganization(ctx, orgID); err == nil {
		return nil, ErrVerificationPending
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	// Same bytes map to the same key, so a retried upload overwrites itself.
	key := rcpt.key(orgID)
	if err := s.receipts.Put(ctx, key, rcpt.reader(), int64(len(rcpt.data)), rcpt.contentType); err != nil {
		return nil, fmt.Errorf("store receipt: %w", err)
	}

	kind := models.KindUpgrade
	if input.PlanID == org.SubscriptionPlan {
		kind = models.KindRenewal
	}

	now := s.now()
	req := &models.SubscriptionRequest{
		ID:                 uuid.New(),
		OrganizationID:     orgID,
		PlanID:             input.PlanID,
		Kind:               kind,
		Amount:             amount,
		Currency:           currencyOf(s.catalog, input.PlanID),
		BillingCycle:       input.BillingCycle,
		PaymentMethod:      input.PaymentMethod,
		ReceiptKey:         key,
		ReceiptSHA256:      rcpt.sha256,
		ReceiptContentType: rcpt.contentType,
		Status:             models.RequestPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.store.InTx(ctx, func(r *repositories.Repos) error {
		if err := r.SubscriptionRequests.Create(ctx, req); err != nil {
			return err
		}
		return writeAudit(ctx, r.AuditLogs, AuditEntry{
			OrganizationID: &orgID,
			EntityType:     EntitySubscriptionRequest,
			EntityID:       req.ID.String(),
			Action:         models.AuditRequestSubmitted,
			ActorID:        &actorID,
			NewValues: models.JSONB{
				"plan_id":        req.PlanID,
				"kind":           string(req.Kind),
				"billing_cycle":  string(req.BillingCycle),
				"payment_method": string(req.PaymentMethod),
				"amount":         req.Amount,
				"receipt_sha256": req.ReceiptSHA256,
			},
		}, now)
	})
	if err != nil {
		s.discardReceipt(ctx, key)
		if errors.Is(err, repositories.ErrDuplicatePending) {
			return nil, ErrVerificationPending
		}
		return nil, err
	}

	s.metrics.RequestSubmitted(string(req.Kind), req.PlanID, string(req.PaymentMethod))
	s.logger.Info().
		Str("organization_id", orgID.String()).
		Str("request_id", req.ID.String()).
		Str("plan", req.PlanID).
		Str("kind", string(req.Kind)).
		Msg("subscription request submitted")
	s.afterCommit(ctx, events.New(events.SubscriptionRequested, orgID, map[string]interface{}{
		"request_id": req.ID.String(),
		"plan_id":    req.PlanID,
		"kind":       string(req.Kind),
	}))

	return req, nil
}

// discardReceipt removes an uploaded receipt whose request was never stored.
// Keys are content addressed, so an object another request points at stays.
func (s *subscriptionService) discardReceipt(ctx context.Context, key string) {
	used, err := s.store.Repos().SubscriptionRequests.ReceiptInUse(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("receipt_key", key).Msg("receipt reference check failed, keeping object")
		return
	}
	if used {
		return
	}
	if err := s.receipts.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("receipt_key", key).Msg("orphaned receipt cleanup failed")
	}
}

func currencyOf(catalog *PlanCatalog, planID string) string {
	p, err := catalog.PlanByID(planID)
	if err != nil {
		return ""
	}
	return p.Currency
}

func (s *subscriptionService) ListRequests(ctx context.Context, filters *repositories.SubscriptionRequestFilters) ([]*models.SubscriptionRequest, error) {
	if filters == nil {
		filters = &repositories.SubscriptionRequestFilters{}
	}
	if filters.Status != nil && !filters.Status.Valid() {
		return nil, fmt.Errorf("invalid request status %q", *filters.Status)
	}
	if filters.Limit <= 0 || filters.Limit > 1000 {
		filters.Limit = 50
	}
	return s.store.Repos().SubscriptionRequests.List(ctx, filters)
}

func (s *subscriptionService) GetRequest(ctx context.Context, id uuid.UUID) (*models.SubscriptionRequest, error) {
	return s.store.Repos().SubscriptionRequests.GetByID(ctx, id)
}

func (s *subscriptionService) ReceiptURL(ctx context.Context, id uuid.UUID) (string, error) {
	req, err := s.store.Repos().SubscriptionRequests.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.receipts.PresignedURL(ctx, req.ReceiptKey, s.settings.ReceiptURLExpiry)
}

func (s *subscriptionService) Verify(ctx context.Context, requestID, adminID uuid.UUID, action models.VerificationAction, reason string) (*models.SubscriptionRequest, error) {
	switch action {
	case models.ActionApprove:
	case models.ActionReject:
		if reason == "" {
			return nil, ErrRejectionReasonRequired
		}
	default:
		return nil, ErrInvalidVerificationAction
	}

	now := s.now()
	var (
		req *models.SubscriptionRequest
		org *models.Organization
	)
	err := s.store.InTx(ctx, func(r *repositories.Repos) error {
		var err error
		req, err = r.SubscriptionRequests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestPending {
			return ErrRequestAlreadyReviewed
		}

		if action == models.ActionReject {
			return s.reject(ctx, r, req, adminID, reason, now)
		}
		org, err = s.approve(ctx, r, req, adminID, now)
		return err
	})
	if errors.Is(err, repositories.ErrStaleState) {
		return nil, ErrRequestAlreadyReviewed
	}
	if err != nil {
		return nil, err
	}

	s.metrics.Verification(string(action), req.PlanID)
	s.logger.Info().
		Str("request_id", req.ID.String()).
		Str("organization_id", req.OrganizationID.String()).
		Str("admin_id", adminID.String()).
		Str("action", string(action)).
		Msg("subscription request reviewed")

	if action == models.ActionApprove {
		s.afterCommit(ctx, events.New(events.SubscriptionApproved, req.OrganizationID, map[string]interface{}{
			"request_id":        req.ID.String(),
			"plan_id":           org.SubscriptionPlan,
			"billing_cycle":     string(org.BillingCycle),
			"next_renewal_date": org.NextRenewalDate,
		}))
	} else {
		s.afterCommit(ctx, events.New(events.SubscriptionRejected, req.OrganizationID, map[string]interface{}{
			"request_id": req.ID.String(),
			"reason":     reason,
		}))
	}
	return req, nil
}

// approve applies a verified payment to the organization. Only trial, active
// and overdue organizations can be activated this way; a suspension has to be
// lifted by an admin first.
func (s *subscriptionService) approve(ctx context.Context, r *repositories.Repos, req *models.SubscriptionRequest, adminID uuid.UUID, now time.Time) (*models.Organization, error) {
	if _, err := s.catalog.PlanByID(req.PlanID); err != nil {
		return nil, err
	}

	org, err := r.Organizations.GetByIDForUpdate(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	if org.SubscriptionStatus == models.StatusSuspended || org.SubscriptionStatus == models.StatusCancelled {
		return nil, ErrSubscriptionInactive
	}
	before := *org
	oldValues := organizationValues(org)

	if org.SubscriptionStatus != models.StatusActive {
		if err := Transition(org, models.StatusActive, now); err != nil {
			return nil, err
		}
	}
	renewal := NextRenewal(now, req.BillingCycle)
	org.SubscriptionPlan = req.PlanID
	org.BillingCycle = req.BillingCycle
	org.NextRenewalDate = &renewal

	if err := r.Organizations.UpdateSubscription(ctx, org, before.SubscriptionStatus); err != nil {
		return nil, err
	}
	if err := r.SubscriptionRequests.MarkReviewed(ctx, req.ID, models.RequestApproved, adminID, nil, now); err != nil {
		return nil, err
	}
	req.Status = models.RequestApproved
	req.ReviewedBy = &adminID
	req.ReviewedAt = &now
	req.UpdatedAt = now

	err = writeAudit(ctx, r.AuditLogs, AuditEntry{
		OrganizationID: &req.OrganizationID,
		EntityType:     EntitySubscriptionRequest,
		EntityID:       req.ID.String(),
		Action:         models.AuditRequestApproved,
		ActorID:        &adminID,
		OldValues:      oldValues,
		NewValues:      organizationValues(org),
	}, now)
	if err != nil {
		return nil, err
	}
	if before.SubscriptionStatus != org.SubscriptionStatus {
		s.metrics.Transition(string(before.SubscriptionStatus), string(org.SubscriptionStatus))
	}
	return org, nil
}

func (s *subscriptionService) reject(ctx context.Context, r *repositories.Repos, req *models.SubscriptionRequest, adminID uuid.UUID, reason string, now time.Time) error {
	if err := r.SubscriptionRequests.MarkReviewed(ctx, req.ID, models.RequestRejected, adminID, &reason, now); err != nil {
		return err
	}
	req.Status = models.RequestRejected
	req.RejectionReason = &reason
	req.ReviewedBy = &adminID
	req.ReviewedAt = &now
	req.UpdatedAt = now

	return writeAudit(ctx, r.AuditLogs, AuditEntry{
		OrganizationID: &req.OrganizationID,
		EntityType:     EntitySubscriptionRequest,
		EntityID:       req.ID.String(),
		Action:         models.AuditRequestRejected,
		ActorID:        &adminID,
		Reason:         &reason,
	}, now)
}

func (s *subscriptionService) Cancel(ctx context.Context, orgID, actorID uuid.UUID, reason *string) (*models.Organization, error) {
	now := s.now()
	var org *models.Organization
	err := s.store.InTx(ctx, func(r *repositories.Repos) error {
		var err error
		org, err = r.Organizations.GetByIDForUpdate(ctx, orgID)
		if err != nil {
			return err
		}
		from := org.SubscriptionStatus
		oldValues := organizationValues(org)
		if err := Transition(org, models.StatusCancelled, now); err != nil {
			return err
		}
		if err := r.Organizations.UpdateSubscription(ctx, org, from); err != nil {
			return err
		}
		return writeAudit(ctx, r.AuditLogs, AuditEntry{
			OrganizationID: &orgID,
			EntityType:     EntityOrganization,
			EntityID:       orgID.String(),
			Action:         models.AuditSubscriptionCancelled,
			ActorID:        &actorID,
			Reason:         reason,
			OldValues:      oldValues,
			NewValues:      organizationValues(org),
		}, now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(models.StatusActive), string(models.StatusCancelled))
	s.afterCommit(ctx, events.New(events.SubscriptionCancelled, orgID, nil))
	return org, nil
}

func (s *subscriptionService) AdvanceLifecycle(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.settings.OverdueGrace)

	candidates, err := s.store.Repos().Organizations.ListLapsed(ctx, now, cutoff, lifecycleBatch)
	if err != nil {
		return 0, fmt.Errorf("list lapsed organizations: %w", err)
	}

	var (
		moved int
		errs  []error
	)
	for _, candidate := range candidates {
		changed, err := s.advance(ctx, candidate.ID, now, cutoff)
		if err != nil {
			s.logger.Error().Err(err).Str("organization_id", candidate.ID.String()).Msg("lifecycle transition failed")
			errs = append(errs, err)
			continue
		}
		if changed {
			moved++
		}
	}
	return moved, errors.Join(errs...)
}

// lapsedTarget decides where a lapsed organization moves next, if anywhere.
func lapsedTarget(org *models.Organization, now, overdueCutoff time.Time) (models.SubscriptionStatus, string, bool) {
	switch org.SubscriptionStatus {
	case models.StatusTrial:
		if org.TrialEndDate != nil && org.TrialEndDate.Before(now) {
			return models.StatusOverdue, "trial expired without payment", true
		}
	case models.StatusActive:
		if org.NextRenewalDate != nil && org.NextRenewalDate.Before(now) {
			return models.StatusOverdue, "renewal date passed without payment", true
		}
	case models.StatusOverdue:
		if org.StatusChangedAt.Before(overdueCutoff) {
			return models.StatusSuspended, "overdue beyond grace period", true
		}
	}
	return "", "", false
}

func (s *subscriptionService) advance(ctx context.Context, orgID uuid.UUID, now, cutoff time.Time) (bool, error) {
	var (
		from, to models.SubscriptionStatus
		changed  bool
	)
	err := s.store.InTx(ctx, func(r *repositories.Repos) error {
		org, err := r.Organizations.GetByIDForUpdate(ctx, orgID)
		if err != nil {
			return err
		}
		target, reason, ok := lapsedTarget(org, now, cutoff)
		if !ok {
			// Paid or changed since it was listed.
			return nil
		}

		from = org.SubscriptionStatus
		oldValues := organizationValues(org)
		if err := Transition(org, target, now); err != nil {
			return err
		}
		if err := r.Organizations.UpdateSubscription(ctx, org, from); err != nil {
			return err
		}
		to, changed = target, true

		return writeAudit(ctx, r.AuditLogs, AuditEntry{
			OrganizationID: &orgID,
			EntityType:     EntityOrganization,
			EntityID:       orgID.String(),
			Action:         models.AuditStatusTransition,
			Reason:         &reason,
			OldValues:      oldValues,
			NewValues:      organizationValues(org),
		}, now)
	})
	if errors.Is(err, repositories.ErrStaleState) {
		return false, nil
	}
	if err != nil || !changed {
		return false, err
	}

	s.metrics.Transition(string(from), string(to))
	s.logger.Info().
		Str("organization_id", orgID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("subscription status advanced")

	eventType := events.SubscriptionOverdue
	if to == models.StatusSuspended {
		eventType = events.OrganizationSuspended
	}
	s.afterCommit(ctx, events.New(eventType, orgID, map[string]interface{}{"from": string(from)}))
	return true, nil
}

func (s *subscriptionService) afterCommit(ctx context.Context, evs ...events.Event) {
	publishAfterCommit(ctx, s.cache, s.publisher, s.logger, evs...)
}

// publishAfterCommit drops the cached billing overview and publishes events.
// Failures are logged; the committed change stands.
func publishAfterCommit(ctx context.Context, cache caching.CacheService, publisher events.Publisher, logger zerolog.Logger, evs ...events.Event) {
	if cache != nil {
		if err := cache.InvalidateBillingOverview(ctx); err != nil {
			logger.Warn().Err(err).Msg("billing overview cache invalidation failed")
		}
	}
	for _, ev := range evs {
		if err := publisher.Publish(ctx, ev); err != nil {
			logger.Warn().Err(err).Str("event", ev.Type).Msg("event publish failed")
		}
	}
}
