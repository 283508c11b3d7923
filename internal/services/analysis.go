package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/platform/obs"
	"accessibility-eta-service/internal/ports"
)

type AnalysisDeps struct {
	Launcher   ports.AreaLauncher
	Operations ports.OperationLog
	// Optional.
	Results  ports.ResultRepository
	Exporter ports.ResultExporter
	Progress ProgressSink
}

type AnalysisRequest struct {
	RunID  string
	Region string
	Areas  []domain.AdminArea
	Inputs domain.SharedInputs
	Config domain.EngineConfig
}

type AnalysisReport struct {
	Results []domain.AreaResult
	Files   []string
}

// RunAnalysis computes a region end to end under an operation log: route all
// areas, persist the merged results and export them. Nothing is persisted or
// exported when any area fails.
func RunAnalysis(ctx context.Context, deps AnalysisDeps, req AnalysisRequest) (report AnalysisReport, err error) {
	ctx = context.WithValue(ctx, obs.RunIDKey, req.RunID)
	defer obs.Time(ctx, "analysis")(&err)

	if len(req.Areas) == 0 {
		return AnalysisReport{}, fmt.Errorf("run analysis: region %q has no admin areas", req.Region)
	}

	ops := deps.Operations
	if _, err := ops.Start(ctx, req.RunID, req.Region); err != nil {
		return AnalysisReport{}, fmt.Errorf("run analysis: start operation: %w", err)
	}

	defer func() {
		if err == nil {
			err = ops.Finish(ctx, req.RunID, domain.OperationComplete)
			if err != nil {
				err = fmt.Errorf("run analysis: finish operation: %w", err)
			}
			return
		}
		data := map[string]any{}
		var wf *domain.WorkerFailure
		if errors.As(err, &wf) {
			data["area_id"] = wf.AreaID
			data["stack"] = wf.Stack
		}
		logOp(ctx, ops, req.RunID, domain.OpCodeError, err.Error(), data)
		if ferr := ops.Finish(ctx, req.RunID, domain.OperationFailed); ferr != nil {
			obs.Logger(ctx).Warn("finish operation", zap.Error(ferr))
		}
	}()

	logOp(ctx, ops, req.RunID, domain.OpCodeStart, "analysis started", map[string]any{
		"areas":   len(req.Areas),
		"origins": len(req.Inputs.Origins),
		"types":   req.Inputs.POIs.Types(),
	})

	logOp(ctx, ops, req.RunID, domain.OpCodeRouting, "computing travel times", nil)
	orch := &RegionOrchestrator{Launcher: deps.Launcher, Config: req.Config, Progress: deps.Progress}
	results, err := orch.Run(ctx, req.RunID, req.Areas, req.Inputs)
	if err != nil {
		return AnalysisReport{}, fmt.Errorf("run analysis: %w", err)
	}

	records := 0
	for _, r := range results {
		records += len(r.Records)
	}
	report.Results = results

	if deps.Results != nil {
		logOp(ctx, ops, req.RunID, domain.OpCodeResults, "saving results", map[string]any{"records": records})
		if err := deps.Results.SaveResults(ctx, req.RunID, results); err != nil {
			return AnalysisReport{}, fmt.Errorf("run analysis: save results: %w", err)
		}
	}

	if deps.Exporter != nil {
		files, err := deps.Exporter.Export(ctx, req.Region, results)
		if err != nil {
			return AnalysisReport{}, fmt.Errorf("run analysis: export: %w", err)
		}
		report.Files = files
		logOp(ctx, ops, req.RunID, domain.OpCodeExport, "results exported", map[string]any{"files": files})
	}

	return report, nil
}

// logOp records a phase; log failures never fail the analysis.
func logOp(ctx context.Context, ops ports.OperationLog, id, code, msg string, data map[string]any) {
	obs.Logger(ctx).Info(msg, zap.String("code", code))
	if err := ops.Log(ctx, id, code, msg, data); err != nil {
		obs.Logger(ctx).Warn("write operation log", zap.String("code", code), zap.Error(err))
	}
}
