package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"nexuscred/internal/requirement/metrics"
	"nexuscred/internal/requirement/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
)

const redisPublishedKeyPrefix = "nexuscred:req:published:"

// Backend is the durable requirement store behind the cache.
type Backend interface {
	Save(ctx context.Context, rc *models.RequirementCommitment) (bool, error)
	Find(ctx context.Context, employerID id.EmployerID, hash commitment.Digest) (*models.RequirementCommitment, error)
	ListByEmployer(ctx context.Context, employerID id.EmployerID) ([]*models.RequirementCommitment, error)
	IsPublished(ctx context.Context, hash commitment.Digest) (bool, error)
}

// RedisCache caches positive IsPublished answers in Redis. Commitments are
// never withdrawn, so a cached "published" can only go stale by expiring.
// Redis failures fall through to the backend.
type RedisCache struct {
	Backend
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRedisCache wraps backend; metrics and logger may be nil.
func NewRedisCache(backend Backend, client *redis.Client, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{Backend: backend, client: client, ttl: ttl, metrics: m, logger: logger}
}

// Save writes through and warms the published flag.
func (c *RedisCache) Save(ctx context.Context, rc *models.RequirementCommitment) (bool, error) {
	created, err := c.Backend.Save(ctx, rc)
	if err != nil {
		return false, err
	}
	c.markPublished(ctx, rc.CommitmentHash)
	return created, nil
}

func (c *RedisCache) IsPublished(ctx context.Context, hash commitment.Digest) (bool, error) {
	start := time.Now()
	err := c.client.Get(ctx, publishedKey(hash)).Err()
	switch {
	case err == nil:
		c.metrics.ObserveLookup(true, time.Since(start).Seconds())
		return true, nil
	case !errors.Is(err, redis.Nil):
		c.metrics.IncCacheError()
		c.logger.WarnContext(ctx, "requirement cache read failed", "requirement_hash", hash.Hex(), "error", err)
	}

	published, err := c.Backend.IsPublished(ctx, hash)
	c.metrics.ObserveLookup(false, time.Since(start).Seconds())
	if err != nil {
		return false, err
	}
	if published {
		c.markPublished(ctx, hash)
	}
	return published, nil
}

func (c *RedisCache) markPublished(ctx context.Context, hash commitment.Digest) {
	if err := c.client.Set(ctx, publishedKey(hash), "1", c.ttl).Err(); err != nil {
		c.metrics.IncCacheError()
		c.logger.WarnContext(ctx, "requirement cache write failed", "requirement_hash", hash.Hex(), "error", err)
	}
}

func publishedKey(hash commitment.Digest) string {
	return redisPublishedKeyPrefix + hash.Hex()
}
