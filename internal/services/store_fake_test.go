package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"rentdesk/internal/models"
	"rentdesk/internal/repositories"

	"github.com/google/uuid"
)

// memStore is an in-memory Store. InTx runs one transaction at a time, which
// gives the same exclusion as the organization row lock, and rolls the whole
// state back when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	orgs      map[uuid.UUID]models.Organization
	users     map[uuid.UUID]models.User
	requests  map[uuid.UUID]models.SubscriptionRequest
	resources map[models.Feature][]models.Resource
	audit     []models.AuditLog

	failAudit error
}

func newMemStore() *memStore {
	return &memStore{
		orgs:      make(map[uuid.UUID]models.Organization),
		users:     make(map[uuid.UUID]models.User),
		requests:  make(map[uuid.UUID]models.SubscriptionRequest),
		resources: make(map[models.Feature][]models.Resource),
	}
}

func (s *memStore) Repos() *repositories.Repos {
	return &repositories.Repos{
		Organizations:        memOrgs{s},
		SubscriptionRequests: memRequests{s},
		Usage:                memUsage{s},
		Resources:            memResources{s},
		AuditLogs:            memAudit{s},
		Users:                memUsers{s},
	}
}

type memSnapshot struct {
	orgs      map[uuid.UUID]models.Organization
	users     map[uuid.UUID]models.User
	requests  map[uuid.UUID]models.SubscriptionRequest
	resources map[models.Feature][]models.Resource
	audit     []models.AuditLog
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := memSnapshot{
		orgs:      make(map[uuid.UUID]models.Organization, len(s.orgs)),
		users:     make(map[uuid.UUID]models.User, len(s.users)),
		requests:  make(map[uuid.UUID]models.SubscriptionRequest, len(s.requests)),
		resources: make(map[models.Feature][]models.Resource, len(s.resources)),
		audit:     append([]models.AuditLog(nil), s.audit...),
	}
	for k, v := range s.orgs {
		snap.orgs[k] = v
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.requests {
		snap.requests[k] = v
	}
	for k, v := range s.resources {
		snap.resources[k] = append([]models.Resource(nil), v...)
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs, s.users, s.requests, s.resources, s.audit = snap.orgs, snap.users, snap.requests, snap.resources, snap.audit
}

func (s *memStore) InTx(ctx context.Context, fn func(r *repositories.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s.Repos()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Test accessors

func (s *memStore) putOrg(org models.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[org.ID] = org
}

func (s *memStore) org(id uuid.UUID) models.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orgs[id]
}

func (s *memStore) request(id uuid.UUID) models.SubscriptionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id]
}

func (s *memStore) seed(orgID uuid.UUID, feature models.Feature, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.resources[feature] = append(s.resources[feature], models.Resource{
			ID: uuid.New(), OrganizationID: orgID, Feature: feature, Name: fmt.Sprintf("seed-%d", i),
		})
	}
}

func (s *memStore) count(orgID uuid.UUID, feature models.Feature) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.resources[feature] {
		if r.OrganizationID == orgID {
			n++
		}
	}
	return n
}

func (s *memStore) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.audit))
	for _, a := range s.audit {
		out = append(out, a.Action)
	}
	return out
}

func (s *memStore) auditFor(action string) []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuditLog
	for _, a := range s.audit {
		if a.Action == action {
			out = append(out, a)
		}
	}
	return out
}

type memOrgs struct{ s *memStore }

func (m memOrgs) Create(_ context.Context, org *models.Organization) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.orgs[org.ID] = *org
	return nil
}

func (m memOrgs) GetByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	org, ok := m.s.orgs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &org, nil
}

func (m memOrgs) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return m.GetByID(ctx, id)
}

func (m memOrgs) List(_ context.Context, filters *models.OrganizationFilters) ([]*models.Organization, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Organization
	for _, org := range m.s.orgs {
		if filters != nil && filters.Status != nil && org.SubscriptionStatus != *filters.Status {
			continue
		}
		org := org
		out = append(out, &org)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m memOrgs) UpdateSubscription(_ context.Context, org *models.Organization, expected models.SubscriptionStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	current, ok := m.s.orgs[org.ID]
	if !ok || current.SubscriptionStatus != expected {
		return repositories.ErrStaleState
	}
	m.s.orgs[org.ID] = *org
	return nil
}

func (m memOrgs) ListLapsed(_ context.Context, now, overdueCutoff time.Time, limit int) ([]*models.Organization, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Organization
	for _, org := range m.s.orgs {
		if _, _, ok := lapsedTarget(&org, now, overdueCutoff); ok {
			org := org
			out = append(out, &org)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m memOrgs) BillingRows(_ context.Context) ([]models.OrganizationBillingRow, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.OrganizationBillingRow
	for _, org := range m.s.orgs {
		out = append(out, models.OrganizationBillingRow{
			Status:          org.SubscriptionStatus,
			Plan:            org.SubscriptionPlan,
			Cycle:           org.BillingCycle,
			CreatedAt:       org.CreatedAt,
			StatusChangedAt: org.StatusChangedAt,
		})
	}
	return out, nil
}

type memRequests struct{ s *memStore }

func (m memRequests) Create(_ context.Context, req *models.SubscriptionRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.requests {
		if existing.OrganizationID == req.OrganizationID && existing.Status == models.RequestPending {
			return repositories.ErrDuplicatePending
		}
	}
	m.s.requests[req.ID] = *req
	return nil
}

func (m memRequests) GetByID(_ context.Context, id uuid.UUID) (*models.SubscriptionRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	req, ok := m.s.requests[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &req, nil
}

func (m memRequests) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.SubscriptionRequest, error) {
	return m.GetByID(ctx, id)
}

func (m memRequests) GetPendingByOrganization(_ context.Context, organizationID uuid.UUID) (*models.SubscriptionRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, req := range m.s.requests {
		if req.OrganizationID == organizationID && req.Status == models.RequestPending {
			return &req, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m memRequests) List(_ context.Context, filters *repositories.SubscriptionRequestFilters) ([]*models.SubscriptionRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.SubscriptionRequest
	for _, req := range m.s.requests {
		if filters.Status != nil && req.Status != *filters.Status {
			continue
		}
		if filters.OrganizationID != nil && req.OrganizationID != *filters.OrganizationID {
			continue
		}
		req := req
		out = append(out, &req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memRequests) MarkReviewed(_ context.Context, id uuid.UUID, status models.RequestStatus, reviewer uuid.UUID, reason *string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	req, ok := m.s.requests[id]
	if !ok || req.Status != models.RequestPending {
		return repositories.ErrStaleState
	}
	req.Status = status
	req.ReviewedBy = &reviewer
	req.ReviewedAt = &at
	req.RejectionReason = reason
	req.UpdatedAt = at
	m.s.requests[id] = req
	return nil
}

func (m memRequests) CountByStatus(_ context.Context, status models.RequestStatus) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n := 0
	for _, req := range m.s.requests {
		if req.Status == status {
			n++
		}
	}
	return n, nil
}

func (m memRequests) ReceiptInUse(_ context.Context, key string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, req := range m.s.requests {
		if req.ReceiptKey == key {
			return true, nil
		}
	}
	return false, nil
}

type memUsage struct{ s *memStore }

func (m memUsage) Count(_ context.Context, organizationID uuid.UUID, feature models.Feature) (int, error) {
	if !feature.Valid() {
		return 0, ErrUnknownFeature
	}
	return m.s.count(organizationID, feature), nil
}

func (m memUsage) Snapshot(_ context.Context, organizationID uuid.UUID) (map[models.Feature]int, error) {
	out := make(map[models.Feature]int, len(models.Features))
	for _, f := range models.Features {
		out[f] = m.s.count(organizationID, f)
	}
	return out, nil
}

type memResources struct{ s *memStore }

func (m memResources) Create(_ context.Context, resource *models.Resource) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.resources[resource.Feature] = append(m.s.resources[resource.Feature], *resource)
	return nil
}

func (m memResources) List(_ context.Context, organizationID uuid.UUID, feature models.Feature, limit, offset int) ([]*models.Resource, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Resource
	for _, r := range m.s.resources[feature] {
		if r.OrganizationID == organizationID {
			r := r
			out = append(out, &r)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memResources) Delete(_ context.Context, organizationID uuid.UUID, feature models.Feature, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	rows := m.s.resources[feature]
	for i, r := range rows {
		if r.ID == id && r.OrganizationID == organizationID {
			m.s.resources[feature] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

type memAudit struct{ s *memStore }

func (m memAudit) Create(_ context.Context, auditLog *models.AuditLog) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failAudit != nil {
		return m.s.failAudit
	}
	m.s.audit = append(m.s.audit, *auditLog)
	return nil
}

func (m memAudit) List(_ context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.AuditLog
	for _, a := range m.s.audit {
		if filters.OrganizationID != nil && (a.OrganizationID == nil || *a.OrganizationID != *filters.OrganizationID) {
			continue
		}
		if filters.Action != nil && a.Action != *filters.Action {
			continue
		}
		a := a
		out = append(out, &a)
	}
	return out, nil
}

type memUsers struct{ s *memStore }

func (m memUsers) Create(_ context.Context, user *models.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Email == user.Email {
			return repositories.ErrEmailTaken
		}
	}
	m.s.users[user.ID] = *user
	return nil
}

func (m memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m memUsers) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.PasswordHash = hash
	m.s.users[id] = u
	return nil
}

// memReceipts is an in-memory ReceiptStore.
type memReceipts struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemReceipts() *memReceipts {
	return &memReceipts{objects: make(map[string][]byte)}
}

func (m *memReceipts) Put(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = buf.Bytes()
	return nil
}

func (m *memReceipts) PresignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", errors.New("object not found")
	}
	return fmt.Sprintf("https://receipts.test/%s?expires=%d", key, int(expiry.Seconds())), nil
}

func (m *memReceipts) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memReceipts) EnsureBucket(context.Context) error { return nil }
func (m *memReceipts) Ping(context.Context) error         { return nil }

func (m *memReceipts) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
