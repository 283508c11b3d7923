package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/platform/obs"
	"accessibility-eta-service/internal/ports"
	"accessibility-eta-service/internal/spatial"
)

// Emit delivers a worker message across the isolation boundary.
type Emit func(domain.WorkerMessage)

// AreaWorker computes every grid cell of one admin area with its own oracle
// handle.
type AreaWorker struct {
	Factory ports.OracleFactory
}

// panicError carries a recovered panic and the stack where it happened.
type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }
func (e *panicError) Stack() string { return e.stack }

// tracedError is an error with the stack of the goroutine it surfaced on.
type tracedError struct {
	err   error
	stack string
}

func (e *tracedError) Error() string { return e.err.Error() }
func (e *tracedError) Unwrap() error { return e.err }
func (e *tracedError) Stack() string { return e.stack }

type stackCarrier interface{ Stack() string }

// Run partitions the area, runs the square tasks under the square
// concurrency limit and returns the records of all cells in cell order.
func (w *AreaWorker) Run(ctx context.Context, job domain.AreaJob, emit Emit) (records []domain.ETARecord, err error) {
	defer obs.Time(ctx, "area_worker")(&err)

	areaID := job.Area.ID
	cfg := job.Config.WithDefaults()

	emit(domain.StatusMessage(areaID, "opening routing oracle"))
	oracle, err := w.Factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("area worker: open oracle: %w", err)
	}
	defer func() {
		if cerr := oracle.Close(); cerr != nil {
			obs.Logger(ctx).Warn("close oracle", zap.Error(cerr))
		}
	}()

	emit(domain.StatusMessage(areaID, "partitioning"))
	cells := spatial.Partition(job.Area, cfg.GridSizeKm)
	emit(domain.SquareCountMessage(areaID, len(cells)))

	task := NewSquareTask(oracle, job.Inputs, cfg)
	perCell := make([][]domain.ETARecord, len(cells))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.SquareConcurrency)
	for i, cell := range cells {
		g.Go(func() (err error) {
			defer recoverInto(&err)

			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := task.Run(gctx, cell)
			if err != nil {
				return fmt.Errorf("square %d: %w", i, err)
			}
			if res.Skipped != nil {
				obs.Logger(ctx).Debug("square skipped", zap.Int("square", i), zap.Error(res.Skipped))
			}
			perCell[i] = res.Records
			obs.Metrics(ctx).SquareDone(string(res.Outcome))
			emit(domain.SquareMessage(areaID, res.Outcome))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("area worker: %w", err)
	}

	n := 0
	for _, rs := range perCell {
		n += len(rs)
	}
	records = make([]domain.ETARecord, 0, n)
	for _, rs := range perCell {
		records = append(records, rs...)
	}
	emit(domain.DebugMessage(areaID, fmt.Sprintf("%d records from %d squares", n, len(cells))))
	return records, nil
}

// RunAreaWorker is the isolation boundary shared by every launcher. It
// serializes emit, converts errors and panics into one error message and
// sends done only on success.
func RunAreaWorker(ctx context.Context, factory ports.OracleFactory, job domain.AreaJob, emit Emit) (err error) {
	ctx = context.WithValue(ctx, obs.AreaIDKey, job.Area.ID)
	if job.RunID != "" {
		ctx = context.WithValue(ctx, obs.RunIDKey, job.RunID)
	}

	var mu sync.Mutex
	send := func(m domain.WorkerMessage) {
		mu.Lock()
		defer mu.Unlock()
		emit(m)
	}

	defer func() {
		if err == nil {
			return
		}
		// Only panics and oracle failures know where they happened.
		stack := ""
		var sc stackCarrier
		if errors.As(err, &sc) {
			stack = sc.Stack()
		}
		send(domain.ErrorMessage(job.Area.ID, err, stack))
	}()
	defer recoverInto(&err)

	w := &AreaWorker{Factory: factory}
	records, err := w.Run(ctx, job, send)
	if err != nil {
		return err
	}
	send(domain.DoneMessage(job.Area.ID, records))
	return nil
}

func recoverInto(errp *error) {
	if r := recover(); r != nil {
		*errp = &panicError{value: r, stack: string(debug.Stack())}
	}
}
