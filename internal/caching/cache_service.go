package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentdesk/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "rentdesk:"

const billingOverviewKey = keyPrefix + "billing:overview"

type CacheService interface {
	// Billing overview caching
	GetBillingOverview(ctx context.Context) (*models.BillingOverview, error)
	SetBillingOverview(ctx context.Context, overview *models.BillingOverview, ttl time.Duration) error
	InvalidateBillingOverview(ctx context.Context) error

	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	ResetRateLimit(ctx context.Context, key string) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept redis://host:port as well as host:port
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Warn().Err(pingErr).Str("address", parsedAddr).Msg("redis ping failed on initialization")
	} else {
		log.Debug().Str("address", parsedAddr).Msg("redis connection established")
	}

	return &redisCacheService{client: client}
}

// NewCacheServiceFromClient wraps an existing client.
func NewCacheServiceFromClient(client *redis.Client) CacheService {
	return &redisCacheService{client: client}
}

func (r *redisCacheService) GetBillingOverview(ctx context.Context) (*models.BillingOverview, error) {
	data, err := r.client.Get(ctx, billingOverviewKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var overview models.BillingOverview
	if err := json.Unmarshal(data, &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

func (r *redisCacheService) SetBillingOverview(ctx context.Context, overview *models.BillingOverview, ttl time.Duration) error {
	data, err := json.Marshal(overview)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, billingOverviewKey, data, ttl).Err()
}

func (r *redisCacheService) InvalidateBillingOverview(ctx context.Context) error {
	return r.client.Del(ctx, billingOverviewKey).Err()
}

// IsRateLimited counts one hit against key and reports whether the window's
// limit has been exceeded.
func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := fmt.Sprintf("%sratelimit:%s", keyPrefix, key)

	// NX only sets a TTL when the key has none, which also repairs a counter
	// that lost its expiry.
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, cacheKey)
		pipe.ExpireNX(ctx, cacheKey, window)
		return nil
	})
	if err != nil {
		return true, err
	}

	return incr.Val() > int64(limit), nil
}

func (r *redisCacheService) ResetRateLimit(ctx context.Context, key string) error {
	return r.client.Del(ctx, fmt.Sprintf("%sratelimit:%s", keyPrefix, key)).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
