package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.uber.org/atomic"

	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/ports"
)

// StubOracle is a deterministic in-memory RoutingOracle for tests and dry
// runs. Nearest distances are keyed by point and durations by
// (source, destination); a missing pair is no route.
type StubOracle struct {
	mu        sync.RWMutex
	nearest   map[orb.Point]float64
	durations map[[2]orb.Point]float64

	// Optional generators used when the maps have no entry.
	NearestFunc  func(p orb.Point) (float64, bool)
	DurationFunc func(src, dst orb.Point) *float64

	// Hook runs before every query; a non-nil error fails it.
	Hook func(ctx context.Context, op string) error

	NearestCalls atomic.Int64
	TableCalls   atomic.Int64
	Closed       atomic.Bool
}

func NewStubOracle() *StubOracle {
	return &StubOracle{
		nearest:   make(map[orb.Point]float64),
		durations: make(map[[2]orb.Point]float64),
	}
}

// NewStraightLineOracle answers from great-circle distances at a fixed
// speed with every point on the network.
func NewStraightLineOracle(speedKmh float64) *StubOracle {
	s := NewStubOracle()
	mps := speedKmh * 1000 / 3600
	s.NearestFunc = func(orb.Point) (float64, bool) { return 0, true }
	s.DurationFunc = func(src, dst orb.Point) *float64 {
		d := geo.Distance(src, dst) / mps
		return &d
	}
	return s
}

// Factory hands out this same stub for every area worker.
func (s *StubOracle) Factory() ports.OracleFactory {
	return func(context.Context) (ports.RoutingOracle, error) { return s, nil }
}

func (s *StubOracle) SetNearest(p orb.Point, meters float64) *StubOracle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nearest[p] = meters
	return s
}

func (s *StubOracle) SetDuration(src, dst orb.Point, seconds float64) *StubOracle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations[[2]orb.Point{src, dst}] = seconds
	return s
}

func (s *StubOracle) Nearest(ctx context.Context, p orb.Point) (float64, error) {
	s.NearestCalls.Inc()
	if err := s.hook(ctx, "nearest"); err != nil {
		return 0, err
	}

	s.mu.RLock()
	d, ok := s.nearest[p]
	s.mu.RUnlock()
	if !ok && s.NearestFunc != nil {
		d, ok = s.NearestFunc(p)
	}
	if !ok {
		return 0, &domain.OracleError{Op: "nearest", Err: fmt.Errorf("missing point %s", domain.CoordinatesOf(p))}
	}
	return d, nil
}

func (s *StubOracle) Table(ctx context.Context, sources, destinations []orb.Point) ([][]*float64, error) {
	s.TableCalls.Inc()
	if err := s.hook(ctx, "table"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]*float64, len(sources))
	for i, src := range sources {
		row := make([]*float64, len(destinations))
		for j, dst := range destinations {
			if d, ok := s.durations[[2]orb.Point{src, dst}]; ok {
				row[j] = &d
				continue
			}
			if s.DurationFunc != nil {
				row[j] = s.DurationFunc(src, dst)
			}
		}
		out[i] = row
	}
	return out, nil
}

func (s *StubOracle) Close() error {
	s.Closed.Store(true)
	return nil
}

func (s *StubOracle) hook(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Hook == nil {
		return nil
	}
	if err := s.Hook(ctx, op); err != nil {
		return &domain.OracleError{Op: op, Err: err}
	}
	return nil
}
