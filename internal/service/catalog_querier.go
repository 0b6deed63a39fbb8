package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/learning-portal-api/internal/models"
)

type catalogSource interface {
	QueryCatalog(ctx context.Context, query models.CatalogQuery) ([]models.CatalogCourse, error)
}

// CatalogQuerier serves stage-1 catalog queries through the cache. Concurrent
// identical misses share a single repository call.
type CatalogQuerier struct {
	source catalogSource
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group
}

// NewCatalogQuerier constructs a CatalogQuerier. cache may be nil.
func NewCatalogQuerier(source catalogSource, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CatalogQuerier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogQuerier{source: source, cache: cache, ttl: ttl, logger: logger}
}

// QueryCatalog implements catalog.Querier.
func (q *CatalogQuerier) QueryCatalog(ctx context.Context, query models.CatalogQuery) ([]models.CatalogCourse, error) {
	key := catalogCacheKey(query)

	var cached []models.CatalogCourse
	if hit, err := q.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	// The shared call outlives any single caller's cancellation.
	shareCtx := context.WithoutCancel(ctx)
	ch := q.group.DoChan(key, func() (interface{}, error) {
		courses, err := q.source.QueryCatalog(shareCtx, query)
		if err != nil {
			return nil, err
		}
		if err := q.cache.Set(shareCtx, key, courses, q.ttl); err != nil {
			q.logger.Debug("catalog cache write skipped", zap.String("key", key))
		}
		return courses, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		q.logger.Debug("catalog query shared", zap.String("key", key))
	}

	courses := res.Val.([]models.CatalogCourse)
	out := make([]models.CatalogCourse, len(courses))
	copy(out, courses)
	return out, nil
}

// Invalidate drops every cached catalog page.
func (q *CatalogQuerier) Invalidate(ctx context.Context) {
	if err := q.cache.Invalidate(ctx, catalogCachePrefix+"*"); err != nil {
		q.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

func catalogCacheKey(query models.CatalogQuery) string {
	search := url.QueryEscape(strings.ToLower(strings.TrimSpace(query.Search)))
	return fmt.Sprintf("%s%s:%s:%s", catalogCachePrefix, query.Basic, query.PriceRange, search)
}
