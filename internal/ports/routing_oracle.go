package ports

import (
	"context"

	"github.com/paulmach/orb"
)

// Contract with the external road-network routing engine.
// Implementations are not required to be safe for heavy concurrent use;
// each area worker opens its own handle through an OracleFactory.
type RoutingOracle interface {
	// Return meters from point to the nearest routable network edge.
	Nearest(ctx context.Context, point orb.Point) (float64, error)
	// Return travel durations in seconds, one row per source and one column
	// per destination. A nil entry means no route exists.
	Table(ctx context.Context, sources, destinations []orb.Point) ([][]*float64, error)
	Close() error
}

// Open a fresh oracle handle.
type OracleFactory func(ctx context.Context) (RoutingOracle, error)
