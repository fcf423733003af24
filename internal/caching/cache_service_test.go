package caching

import (
	"context"
	"testing"
	"time"

	"rentdesk/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CacheServiceTestSuite struct {
	suite.Suite
	mr    *miniredis.Miniredis
	cache CacheService
	ctx   context.Context
}

func (s *CacheServiceTestSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.cache = NewCacheServiceFromClient(redis.NewClient(&redis.Options{Addr: s.mr.Addr()}))
	s.ctx = context.Background()
}

func TestCacheServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CacheServiceTestSuite))
}

func (s *CacheServiceTestSuite) TestBillingOverview_MissReturnsNil() {
	overview, err := s.cache.GetBillingOverview(s.ctx)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), overview)
}

func (s *CacheServiceTestSuite) TestBillingOverview_RoundTripAndExpiry() {
	in := &models.BillingOverview{
		MRR:                3000,
		Currency:           "ETB",
		TotalOrganizations: 4,
		StatusBreakdown:    map[models.SubscriptionStatus]int{models.StatusActive: 3, models.StatusTrial: 1},
		PlanBreakdown:      map[string]int{"basic": 2, "professional": 2},
		GeneratedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(s.T(), s.cache.SetBillingOverview(s.ctx, in, time.Minute))

	out, err := s.cache.GetBillingOverview(s.ctx)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), out)
	assert.Equal(s.T(), 3, out.StatusBreakdown[models.StatusActive])
	assert.Equal(s.T(), 3000.0, out.MRR)

	s.mr.FastForward(2 * time.Minute)
	out, err = s.cache.GetBillingOverview(s.ctx)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), out)
}

func (s *CacheServiceTestSuite) TestInvalidateBillingOverview() {
	require.NoError(s.T(), s.cache.SetBillingOverview(s.ctx, &models.BillingOverview{MRR: 1}, time.Hour))
	require.NoError(s.T(), s.cache.InvalidateBillingOverview(s.ctx))

	out, err := s.cache.GetBillingOverview(s.ctx)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), out)
}

func (s *CacheServiceTestSuite) TestIsRateLimited() {
	for i := 0; i < 3; i++ {
		limited, err := s.cache.IsRateLimited(s.ctx, "login:a@example.com", 3, time.Minute)
		require.NoError(s.T(), err)
		assert.False(s.T(), limited)
	}

	limited, err := s.cache.IsRateLimited(s.ctx, "login:a@example.com", 3, time.Minute)
	require.NoError(s.T(), err)
	assert.True(s.T(), limited)

	require.NoError(s.T(), s.cache.ResetRateLimit(s.ctx, "login:a@example.com"))
	limited, err = s.cache.IsRateLimited(s.ctx, "login:a@example.com", 3, time.Minute)
	require.NoError(s.T(), err)
	assert.False(s.T(), limited)
}

func (s *CacheServiceTestSuite) TestIsRateLimited_WindowExpires() {
	_, err := s.cache.IsRateLimited(s.ctx, "login:b@example.com", 1, time.Minute)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), time.Minute, s.mr.TTL(keyPrefix+"ratelimit:login:b@example.com"))

	limited, err := s.cache.IsRateLimited(s.ctx, "login:b@example.com", 1, time.Minute)
	require.NoError(s.T(), err)
	assert.True(s.T(), limited)

	s.mr.FastForward(2 * time.Minute)
	limited, err = s.cache.IsRateLimited(s.ctx, "login:b@example.com", 1, time.Minute)
	require.NoError(s.T(), err)
	assert.False(s.T(), limited)
}

func (s *CacheServiceTestSuite) TestIsRateLimited_RepairsMissingExpiry() {
	key := keyPrefix + "ratelimit:login:c@example.com"
	require.NoError(s.T(), s.mr.Set(key, "9"))

	limited, err := s.cache.IsRateLimited(s.ctx, "login:c@example.com", 3, time.Minute)
	require.NoError(s.T(), err)
	assert.True(s.T(), limited)
	assert.Equal(s.T(), time.Minute, s.mr.TTL(key))
}
