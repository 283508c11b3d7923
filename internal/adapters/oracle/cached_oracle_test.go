package oracle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu   sync.Mutex
	m    map[orb.Point]float64
	fail bool
}

func newMemCache() *memCache { return &memCache{m: make(map[orb.Point]float64)} }

func (c *memCache) GetMany(ctx context.Context, points []orb.Point) (map[orb.Point]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, errors.New("cache down")
	}
	out := make(map[orb.Point]float64)
	for _, p := range points {
		if d, ok := c.m[p]; ok {
			out[p] = d
		}
	}
	return out, nil
}

func (c *memCache) PutMany(ctx context.Context, distances map[orb.Point]float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	for p, d := range distances {
		c.m[p] = d
	}
	return nil
}

func TestCachedOracleHitAndMiss(t *testing.T) {
	p := orb.Point{10, 20}
	stub := NewStubOracle().SetNearest(p, 42)
	cache := newMemCache()
	o := NewCachedOracle(stub, cache, nil)

	d, err := o.Nearest(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 42.0, d)
	assert.Equal(t, int64(1), stub.NearestCalls.Load())

	d, err = o.Nearest(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 42.0, d)
	assert.Equal(t, int64(1), stub.NearestCalls.Load(), "second lookup should hit the cache")
}

func TestCachedOracleSurvivesCacheFailure(t *testing.T) {
	p := orb.Point{10, 20}
	stub := NewStubOracle().SetNearest(p, 5)
	cache := newMemCache()
	cache.fail = true

	d, err := NewCachedOracle(stub, cache, nil).Nearest(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 5.0, d)
}

func TestCachedOracleDelegatesTable(t *testing.T) {
	a, b := orb.Point{0, 0}, orb.Point{1, 1}
	stub := NewStubOracle().SetDuration(a, b, 60)

	m, err := NewCachedOracle(stub, newMemCache(), nil).Table(context.Background(), []orb.Point{a}, []orb.Point{b})
	require.NoError(t, err)
	assert.Equal(t, 60.0, *m[0][0])
}
