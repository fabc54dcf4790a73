package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tarlanaraujo/TarlanTV/internal/cache"
	"github.com/tarlanaraujo/TarlanTV/internal/models"
)

// Cache TTLs. Job status is polled by clients while a job runs, so it is
// cached briefly and invalidated on every write.
const (
	ttlJob     = 30 * time.Second
	ttlJobs    = 30 * time.Second
	ttlChannel = 5 * time.Minute
)

// CachedStore wraps a Store with a Redis caching layer.
// Read-heavy operations are served from cache when possible;
// write operations invalidate the relevant cache keys.
type CachedStore struct {
	inner  Store
	cache  *cache.Redis
	logger *zap.Logger
}

// NewCachedStore creates a CachedStore that wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{inner: inner, cache: c, logger: logger}
}

func jobKey(id int64) string     { return fmt.Sprintf("job:%d", id) }
func channelKey(id int64) string { return fmt.Sprintf("channel:%d", id) }
func jobsKey(limit int) string   { return fmt.Sprintf("jobs:recent:%d", limit) }

// --- cached read operations ---

func (c *CachedStore) GetJob(ctx context.Context, jobID int64) (*models.Job, error) {
	key := jobKey(jobID)
	if v, err := cache.Get[models.Job](ctx, c.cache, key); err == nil {
		return &v, nil
	}
	j, err := c.inner.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, j, ttlJob)
	return j, nil
}

func (c *CachedStore) ListJobs(ctx context.Context, limit int) ([]models.Job, error) {
	key := jobsKey(limit)
	if v, err := cache.Get[[]models.Job](ctx, c.cache, key); err == nil {
		return v, nil
	}
	jobs, err := c.inner.ListJobs(ctx, limit)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, jobs, ttlJobs)
	return jobs, nil
}

func (c *CachedStore) GetChannel(ctx context.Context, channelID int64) (*models.Channel, error) {
	key := channelKey(channelID)
	if v, err := cache.Get[models.Channel](ctx, c.cache, key); err == nil {
		return &v, nil
	}
	ch, err := c.inner.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, ch, ttlChannel)
	return ch, nil
}

// --- write operations with cache invalidation ---

func (c *CachedStore) CreateJob(ctx context.Context, sourceURL string) (*models.Job, error) {
	j, err := c.inner.CreateJob(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	c.invalidatePattern(ctx, "jobs:*")
	return j, nil
}

func (c *CachedStore) StartJob(ctx context.Context, jobID int64) error {
	err := c.inner.StartJob(ctx, jobID)
	c.invalidateJob(ctx, jobID)
	return err
}

func (c *CachedStore) FailJob(ctx context.Context, jobID int64, title string) error {
	err := c.inner.FailJob(ctx, jobID, title)
	c.invalidateJob(ctx, jobID)
	return err
}

func (c *CachedStore) FailStaleJobs(ctx context.Context, before time.Time, title string) (int64, error) {
	n, err := c.inner.FailStaleJobs(ctx, before, title)
	if n > 0 {
		c.invalidatePattern(ctx, "job:*", "jobs:*")
	}
	return n, err
}

func (c *CachedStore) CompleteJob(ctx context.Context, jobID int64, title string, channels []models.Channel) ([]models.Channel, error) {
	out, err := c.inner.CompleteJob(ctx, jobID, title, channels)
	c.invalidateJob(ctx, jobID)
	return out, err
}

func (c *CachedStore) RefreshValidCount(ctx context.Context, jobID int64) (int, error) {
	n, err := c.inner.RefreshValidCount(ctx, jobID)
	c.invalidateJob(ctx, jobID)
	return n, err
}

func (c *CachedStore) UpdateChannelStatus(ctx context.Context, channelID int64, working bool, checkedAt time.Time) error {
	if err := c.inner.UpdateChannelStatus(ctx, channelID, working, checkedAt); err != nil {
		return err
	}
	c.invalidate(ctx, channelKey(channelID))
	return nil
}

// --- passthrough (no caching) ---

// ListChannels changes on every probe during validation; caching it would
// mostly serve stale liveness flags.
func (c *CachedStore) ListChannels(ctx context.Context, jobID int64) ([]models.Channel, error) {
	return c.inner.ListChannels(ctx, jobID)
}

func (c *CachedStore) CreateExport(ctx context.Context, e *models.PlaylistExport) (int64, error) {
	return c.inner.CreateExport(ctx, e)
}

// --- helpers ---

func (c *CachedStore) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := cache.Set(ctx, c.cache, key, v, ttl); err != nil {
		c.logger.Warn("cache set", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedStore) invalidateJob(ctx context.Context, jobID int64) {
	c.invalidate(ctx, jobKey(jobID))
	c.invalidatePattern(ctx, "jobs:*")
}

// invalidate deletes exact cache keys, logging any errors.
func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Del(ctx, c.cache, keys...); err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("cache del", zap.Strings("keys", keys), zap.Error(err))
	}
}

// invalidatePattern deletes all keys matching the given glob patterns.
func (c *CachedStore) invalidatePattern(ctx context.Context, patterns ...string) {
	for _, p := range patterns {
		if err := cache.DelPattern(ctx, c.cache, p); err != nil {
			c.logger.Warn("cache del pattern", zap.String("pattern", p), zap.Error(err))
		}
	}
}
