package ipapi

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"salon-discovery/internal/domain"
	"salon-discovery/internal/observability"
)

const (
	resultHit  = "hit"
	resultMiss = "miss"
)

// CachedLocator wraps a Locator with a bounded per-IP fix cache. A cached
// fix is served while it is no older than the request's MaxCacheAge; a
// zero MaxCacheAge bypasses the cache entirely.
type CachedLocator struct {
	inner   domain.Locator
	cache   *lru.Cache[string, domain.Fix]
	metrics *observability.Metrics
}

// NewCachedLocator creates a cache decorator around a locator.
func NewCachedLocator(inner domain.Locator, maxEntries int, metrics *observability.Metrics) (*CachedLocator, error) {
	cache, err := lru.New[string, domain.Fix](maxEntries)
	if err != nil {
		return nil, err
	}
	return &CachedLocator{inner: inner, cache: cache, metrics: metrics}, nil
}

func (c *CachedLocator) Locate(ctx context.Context, req domain.FixRequest) (domain.Fix, error) {
	if req.MaxCacheAge > 0 {
		if fix, ok := c.cache.Get(req.IP); ok && clock.Now().Sub(fix.ObtainedAt) <= req.MaxCacheAge {
			c.metrics.LocateCache.WithLabelValues(resultHit).Inc()
			return fix, nil
		}
	}
	c.metrics.LocateCache.WithLabelValues(resultMiss).Inc()

	fix, err := c.inner.Locate(ctx, req)
	if err != nil {
		return domain.Fix{}, err
	}

	// Only successful fixes are cached so a failed lookup can be retried.
	c.cache.Add(req.IP, fix)
	return fix, nil
}
