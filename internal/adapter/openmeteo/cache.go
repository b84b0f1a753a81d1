package openmeteo

import (
	"context"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	"github.com/couchcryptid/crop-advisor-service/internal/lru"
	"github.com/couchcryptid/crop-advisor-service/internal/observability"
)

// CachedSource wraps a WeatherSource with an LRU cache keyed by place.
// Pass lru.WithTTL so reports are refreshed as forecasts change.
type CachedSource struct {
	inner   domain.WeatherSource
	cache   *lru.Cache[string, domain.WeatherReport]
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a weather source.
func NewCachedSource(inner domain.WeatherSource, maxEntries int, metrics *observability.Metrics, opts ...lru.Option) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   lru.New[string, domain.WeatherReport](maxEntries, opts...),
		metrics: metrics,
	}
}

func (c *CachedSource) Get(ctx context.Context, place domain.Place) (domain.WeatherReport, error) {
	key := place.Key()
	if report, ok := c.cache.Get(key); ok {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return report, nil
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()

	report, err := c.inner.Get(ctx, place)
	if err != nil {
		return report, err
	}
	c.cache.Put(key, report)
	return report, nil
}
