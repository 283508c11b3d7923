package services

import (
	"context"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/platform/obs"
	"accessibility-eta-service/internal/ports"
)

// RegionOrchestrator runs one isolated area worker per admin area under a
// global concurrency limit. The first failing worker kills every other
// running worker and fails the region; there is no partial success.
type RegionOrchestrator struct {
	Launcher ports.AreaLauncher
	Config   domain.EngineConfig
	Progress ProgressSink

	running atomic.Int64
}

// Results are ordered by the input area index.
func (o *RegionOrchestrator) Run(ctx context.Context, runID string, areas []domain.AdminArea, inputs domain.SharedInputs) (results []domain.AreaResult, err error) {
	defer obs.Time(ctx, "region")(&err)

	cfg := o.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("region orchestrator: %w", err)
	}
	progress := o.Progress
	if progress == nil {
		progress = noopSink{}
	}

	results = make([]domain.AreaResult, len(areas))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.AreaConcurrency)
	for i, area := range areas {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			job := domain.AreaJob{RunID: runID, Area: area, Inputs: inputs, Config: cfg}
			records, err := o.runArea(gctx, job, progress)
			if err != nil {
				return err
			}
			results[i] = domain.AreaResult{
				AreaID:         area.ID,
				AreaName:       area.Name,
				AreaProperties: area.Properties,
				Records:        records,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Running returns the number of area workers currently launched.
func (o *RegionOrchestrator) Running() int64 { return o.running.Load() }

func (o *RegionOrchestrator) runArea(ctx context.Context, job domain.AreaJob, progress ProgressSink) (records []domain.ETARecord, err error) {
	area := job.Area
	log := obs.Logger(ctx).With(zap.String("area_id", area.ID), zap.String("area", area.Name))

	h, err := o.Launcher.Launch(ctx, job)
	if err != nil {
		return nil, &domain.WorkerFailure{AreaID: area.ID, AreaName: area.Name, ExitCode: -1, Message: err.Error()}
	}

	obs.Metrics(ctx).WorkersRunning(o.running.Inc())
	progress.AreaStarted(area.ID, area.Name)
	defer func() {
		obs.Metrics(ctx).WorkersRunning(o.running.Dec())
		progress.AreaFinished(area.ID, err)
		if err != nil {
			obs.Metrics(ctx).AreaDone("failed")
			return
		}
		obs.Metrics(ctx).AreaDone("ok")
	}()

	stop := context.AfterFunc(ctx, h.Kill)
	defer stop()

	// On cancellation the worker is killed and abandoned: its in-flight
	// cells are not awaited.
	abandon := func() error {
		h.Kill()
		go reap(h)
		return ctx.Err()
	}

	var done bool
	msgs := h.Messages()
	for msgs != nil {
		select {
		case <-ctx.Done():
			return nil, abandon()
		case m, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			progress.Message(m)
			switch m.Type {
			case domain.MessageDone:
				records, done = m.Records, true
			case domain.MessageError:
				log.Error("area worker error", zap.String("error", m.Data))
			case domain.MessageSquareCount:
				log.Info("area partitioned", zap.Int("squares", m.Count))
			default:
				log.Debug("area worker", zap.String("type", string(m.Type)), zap.String("data", m.Data))
			}
		}
	}

	waited := make(chan error, 1)
	go func() { waited <- h.Wait() }()
	select {
	case <-ctx.Done():
		return nil, abandon()
	case err := <-waited:
		if err != nil {
			return nil, err
		}
	}
	if !done {
		return nil, &domain.WorkerFailure{AreaID: area.ID, AreaName: area.Name, Message: "worker exited without results"}
	}
	log.Info("area done", zap.Int("records", len(records)))
	return records, nil
}

// reap drains and waits for an abandoned worker so its goroutines and
// process are released once it stops.
func reap(h ports.AreaHandle) {
	for range h.Messages() {
	}
	_ = h.Wait()
}
