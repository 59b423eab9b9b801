package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidateNamespace(ctx context.Context, parts ...string) (int, error)
}

// CacheService fronts the directory read models with Redis. Concurrent misses on the
// same key share one load.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
	flight     singleflight.Group
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger.Named("directory_cache"), enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get decodes the entry under key into dest and reports whether it was present. Backend
// failures count as misses.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores value under key. A non-positive ttl uses the configured default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.repo.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every key under the namespace built from parts.
func (s *CacheService) Invalidate(ctx context.Context, parts ...string) {
	if !s.Enabled() {
		return
	}
	removed, err := s.repo.InvalidateNamespace(ctx, parts...)
	if err != nil {
		s.logger.Warn("cache invalidate failed", zap.Strings("namespace", parts), zap.Error(err))
		return
	}
	s.logger.Debug("cache namespace invalidated", zap.Strings("namespace", parts), zap.Int("keys", removed))
}

// remember returns the cached value under key, or runs load once for all concurrent
// callers and caches its result. The bool reports a cache hit.
func remember[T any](ctx context.Context, s *CacheService, key string, load func(context.Context) (T, error)) (T, bool, error) {
	var cached T
	if s.Get(ctx, key, &cached) {
		return cached, true, nil
	}
	if !s.Enabled() {
		value, err := load(ctx)
		return value, false, err
	}

	shared, err, _ := s.flight.Do(key, func() (interface{}, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		s.Set(ctx, key, value, 0)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	value, ok := shared.(T)
	if !ok {
		var zero T
		return zero, false, fmt.Errorf("cache: unexpected value type %T for %s", shared, key)
	}
	return value, false, nil
}
