package oracle

import (
	"context"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"accessibility-eta-service/internal/platform/metrics"
	"accessibility-eta-service/internal/platform/obs"
	"accessibility-eta-service/internal/ports"
)

// CachedOracle answers Nearest from a persistent cache and writes misses
// back. Cache failures are logged and never fail the query.
type CachedOracle struct {
	inner   ports.RoutingOracle
	cache   ports.NearestCache
	metrics *metrics.Metrics
}

func NewCachedOracle(inner ports.RoutingOracle, cache ports.NearestCache, m *metrics.Metrics) *CachedOracle {
	return &CachedOracle{inner: inner, cache: cache, metrics: m}
}

func (c *CachedOracle) Nearest(ctx context.Context, point orb.Point) (float64, error) {
	hits, err := c.cache.GetMany(ctx, []orb.Point{point})
	if err != nil {
		obs.Logger(ctx).Warn("nearest cache read failed", zap.Error(err))
	}
	if d, ok := hits[point]; ok {
		c.metrics.CacheLookup(1, 0)
		return d, nil
	}
	c.metrics.CacheLookup(0, 1)

	d, err := c.inner.Nearest(ctx, point)
	if err != nil {
		return 0, err
	}

	if err := c.cache.PutMany(ctx, map[orb.Point]float64{point: d}); err != nil {
		obs.Logger(ctx).Warn("nearest cache write failed", zap.Error(err))
	}
	return d, nil
}

func (c *CachedOracle) Table(ctx context.Context, sources, destinations []orb.Point) ([][]*float64, error) {
	return c.inner.Table(ctx, sources, destinations)
}

func (c *CachedOracle) Close() error { return c.inner.Close() }
