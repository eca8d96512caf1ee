package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-announcement-api/internal/models"
	appErrors "github.com/noah-isme/lms-announcement-api/pkg/errors"
)

const (
	feedCachePrefix  = "announcements:feed:"
	defaultFeedCache = 2 * time.Minute
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// FeedCache stores feed candidate sets under announcements:feed:*. It never
// stores filtered results, so cached entries stay valid as time passes; any
// write to announcements drops every entry. Backend failures are logged and
// behave as misses.
type FeedCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewFeedCache constructs the cache. A nil repo disables caching.
func NewFeedCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *FeedCache {
	if ttl <= 0 {
		ttl = defaultFeedCache
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger}
}

// Enabled indicates whether a backend is configured.
func (c *FeedCache) Enabled() bool {
	return c != nil && c.repo != nil
}

// Candidates returns the cached candidate set for feed.
func (c *FeedCache) Candidates(ctx context.Context, feed string) ([]models.Announcement, bool) {
	if !c.Enabled() {
		return nil, false
	}
	start := time.Now()
	var items []models.Announcement
	err := c.repo.Get(ctx, feedCachePrefix+feed, &items)
	c.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("feed cache read failed", zap.String("feed", feed), zap.Error(err))
		}
		return nil, false
	}
	return items, true
}

// StoreCandidates caches items for feed.
func (c *FeedCache) StoreCandidates(ctx context.Context, feed string, items []models.Announcement) {
	if !c.Enabled() {
		return
	}
	if items == nil {
		items = []models.Announcement{}
	}
	start := time.Now()
	err := c.repo.Set(ctx, feedCachePrefix+feed, items, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("feed cache write failed", zap.String("feed", feed), zap.Error(err))
	}
}

// InvalidateFeeds drops every cached feed.
func (c *FeedCache) InvalidateFeeds(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	removed, err := c.repo.DeleteByPattern(ctx, feedCachePrefix+"*")
	if err != nil {
		c.logger.Warn("feed cache invalidation failed", zap.Error(err))
		return
	}
	c.logger.Debug("feed cache invalidated", zap.Int("removed", removed))
}
