package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime/debug"
	"slices"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/platform/obs"
	"accessibility-eta-service/internal/ports"
	"accessibility-eta-service/internal/spatial"
)

type SquareResult struct {
	Outcome domain.SquareOutcome
	Records []domain.ETARecord
	// Skipped is ErrNoWorkArea or ErrNoOrigins for cells with nothing to
	// compute. It is not a failure.
	Skipped error
}

// SquareTask computes the ETA records of one grid cell against a single
// oracle handle. It is safe for concurrent Run calls when the oracle is.
type SquareTask struct {
	Oracle  ports.RoutingOracle
	Origins *spatial.OriginIndex
	POIs    map[string]*spatial.POIIndex
	Config  domain.EngineConfig
}

func NewSquareTask(oracle ports.RoutingOracle, inputs domain.SharedInputs, cfg domain.EngineConfig) *SquareTask {
	return &SquareTask{
		Oracle:  oracle,
		Origins: spatial.NewOriginIndex(inputs.Origins),
		POIs:    spatial.Indexes(inputs.POIs),
		Config:  cfg,
	}
}

func (t *SquareTask) Run(ctx context.Context, cell spatial.Cell) (res SquareResult, err error) {
	if cell.WorkArea == nil {
		return SquareResult{Outcome: domain.SquareNoIntersection, Skipped: domain.ErrNoWorkArea}, nil
	}

	origins := t.Origins.InCell(cell)
	if len(origins) == 0 {
		return SquareResult{Outcome: domain.SquareNoOrigins, Skipped: domain.ErrNoOrigins}, nil
	}

	defer obs.Time(ctx, "square_task")(&err)

	sources := make([]orb.Point, len(origins))
	for i, o := range origins {
		sources[i] = o.Point
	}

	// Nearest and per-type table queries stay sequential within a cell.
	nearest := make([]float64, len(origins))
	for i, p := range sources {
		d, err := t.Oracle.Nearest(ctx, p)
		if err != nil {
			return SquareResult{}, oracleErr("nearest", err)
		}
		nearest[i] = d
	}

	types := slices.Sorted(maps.Keys(t.POIs))

	durations := make(map[string][][]*float64, len(types))
	for _, typ := range types {
		if err := ctx.Err(); err != nil {
			return SquareResult{}, fmt.Errorf("square task: %w", err)
		}
		search, err := SearchPOIs(ctx, t.POIs[typ], cell, t.Config)
		if err != nil {
			return SquareResult{}, fmt.Errorf("square task: %w", err)
		}
		if search.Exhausted {
			obs.Logger(ctx).Debug("poi search exhausted",
				zap.String("type", typ),
				zap.Int("iterations", search.Iterations),
				zap.Int("candidates", len(search.POIs)),
			)
		}

		if len(search.POIs) == 0 {
			durations[typ] = make([][]*float64, len(origins))
			continue
		}

		destinations := make([]orb.Point, len(search.POIs))
		for i, p := range search.POIs {
			destinations[i] = p.Point
		}

		m, err := t.Oracle.Table(ctx, sources, destinations)
		if err != nil {
			return SquareResult{}, oracleErr("table", err)
		}
		if err := checkShape(m, len(sources), len(destinations)); err != nil {
			return SquareResult{}, oracleErr("table", err)
		}
		durations[typ] = m
	}

	records, err := AggregateETAs(origins, nearest, durations, t.Config.WalkSpeedKmh)
	if err != nil {
		return SquareResult{}, fmt.Errorf("square task: %w", err)
	}
	return SquareResult{Outcome: domain.SquareProcessed, Records: records}, nil
}

// oracleErr wraps a failed oracle call as an OracleError and keeps the
// stack of the square task that made it.
func oracleErr(op string, err error) error {
	var oe *domain.OracleError
	if !errors.As(err, &oe) {
		err = &domain.OracleError{Op: op, Err: err}
	}
	return &tracedError{err: err, stack: string(debug.Stack())}
}

func checkShape(m [][]*float64, rows, cols int) error {
	if len(m) != rows {
		return fmt.Errorf("durations have %d rows, want %d", len(m), rows)
	}
	for i, row := range m {
		if len(row) != cols {
			return fmt.Errorf("durations row %d has %d columns, want %d", i, len(row), cols)
		}
	}
	return nil
}
