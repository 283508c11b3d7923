package ports

import (
	"context"

	"github.com/paulmach/orb"
)

// Optional persistent cache of nearest-road distances keyed by point.
type NearestCache interface {
	// Fetch cached distances; missing points are absent from the result.
	GetMany(ctx context.Context, points []orb.Point) (map[orb.Point]float64, error)
	PutMany(ctx context.Context, distances map[orb.Point]float64) error
}
