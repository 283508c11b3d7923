package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"accessibility-eta-service/internal/adapters/isolation"
	"accessibility-eta-service/internal/adapters/repositories"
	"accessibility-eta-service/internal/api"
	"accessibility-eta-service/internal/config"
	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/platform/db"
	"accessibility-eta-service/internal/platform/metrics"
	"accessibility-eta-service/internal/platform/obs"
	"accessibility-eta-service/internal/ports"
	"accessibility-eta-service/internal/services"
)

type runFlags struct {
	adminAreas      string
	origins         string
	pois            string
	poiTypeProperty string
	region          string
	runID           string
	out             string
	gridSize        float64
	maxTime         float64
	maxSpeed        float64
	isolation       string
	oracle          string
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a region analysis end to end",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.adminAreas, "admin-areas", "", "admin area polygons (GeoJSON FeatureCollection)")
	fl.StringVar(&f.origins, "origins", "", "origin points (GeoJSON FeatureCollection)")
	fl.StringVar(&f.pois, "pois", "", "points of interest (GeoJSON FeatureCollection)")
	fl.StringVar(&f.poiTypeProperty, "poi-type-property", "type", "feature property holding the POI type")
	fl.StringVar(&f.region, "region", "", "region name used for the operation log and export files")
	fl.StringVar(&f.runID, "run-id", "", "run id (default: random uuid)")
	fl.StringVar(&f.out, "out", "export", "export directory; empty disables file export")
	fl.Float64Var(&f.gridSize, "grid-size", 0, "grid cell size in km (default GRID_SIZE_KM)")
	fl.Float64Var(&f.maxTime, "max-time", 0, "initial POI search time budget in seconds (default MAX_TIME_SECONDS)")
	fl.Float64Var(&f.maxSpeed, "max-speed", 0, "POI search speed in km/h (default MAX_SPEED_KMH)")
	fl.StringVar(&f.isolation, "isolation", "", "area worker isolation: inprocess or process (default WORKER_ISOLATION)")
	fl.StringVar(&f.oracle, "oracle", oracleOSRM, "routing oracle: osrm or straight-line")
	for _, name := range []string{"admin-areas", "origins", "pois", "region"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) run(cmd *cobra.Command, f *runFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg
	engine := cfg.Engine
	if f.gridSize > 0 {
		engine.GridSizeKm = f.gridSize
	}
	if f.maxTime > 0 {
		engine.MaxTimeSeconds = f.maxTime
	}
	if f.maxSpeed > 0 {
		engine.MaxSpeedKmh = f.maxSpeed
	}
	if err := engine.Validate(); err != nil {
		return err
	}
	isolationMode := cfg.Isolation
	if f.isolation != "" {
		isolationMode = f.isolation
	}

	runID := f.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := a.logger.With(zap.String("run_id", runID), zap.String("region", f.region))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	ctx = obs.WithMetrics(obs.WithLogger(ctx, a.logger), m)

	areas, err := repositories.LoadAdminAreas(f.adminAreas)
	if err != nil {
		return err
	}
	origins, err := repositories.LoadOrigins(f.origins)
	if err != nil {
		return err
	}
	pois, err := repositories.LoadPOIs(f.pois, f.poiTypeProperty)
	if err != nil {
		return err
	}
	logger.Info("inputs loaded",
		zap.Int("areas", len(areas)),
		zap.Int("origins", len(origins)),
		zap.Strings("poi_types", pois.Types()),
	)

	var conn *sql.DB
	deps := services.AnalysisDeps{Operations: repositories.NewMemoryOperationLog()}
	if cfg.DatabaseURL != "" {
		conn, err = db.Open(ctx, cfg.DatabaseURL, engine.AreaConcurrency+2)
		if err != nil {
			return err
		}
		defer conn.Close()

		initSchema, err := config.GetBool("DB_INIT_SCHEMA", false)
		if err != nil {
			return err
		}
		if initSchema {
			if err := repositories.InitSchema(ctx, conn); err != nil {
				return err
			}
		}
		deps.Operations = repositories.NewSQLOperationLog(conn)
		deps.Results = repositories.NewSQLResultRepository(conn)
	}
	if f.out != "" {
		deps.Exporter = repositories.NewFileExporter(f.out)
	}

	launcher, closeOracle, err := a.launcher(ctx, isolationMode, factoryOptions{kind: f.oracle, speedKmh: engine.MaxSpeedKmh}, m, conn)
	if err != nil {
		return err
	}
	defer closeOracle()
	deps.Launcher = launcher

	progress := services.NewProgressTracker()
	deps.Progress = progress

	if cfg.OpsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.OpsAddr,
			Handler:           api.NewRouter(a.logger, progress, reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("ops server listening", zap.String("addr", cfg.OpsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ops server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout())
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	start := time.Now()
	report, err := services.RunAnalysis(ctx, deps, services.AnalysisRequest{
		RunID:  runID,
		Region: f.region,
		Areas:  areas,
		Inputs: domain.SharedInputs{Origins: origins, POIs: pois},
		Config: engine,
	})
	if err != nil {
		var wf *domain.WorkerFailure
		if errors.As(err, &wf) {
			logger.Error("analysis failed",
				zap.String("area_id", wf.AreaID),
				zap.String("area", wf.AreaName),
				zap.Int("exit_code", wf.ExitCode),
				zap.String("error", wf.Message),
				zap.String("stack", wf.Stack),
			)
		} else {
			logger.Error("analysis failed", zap.Error(err))
		}
		return err
	}

	records := 0
	for _, r := range report.Results {
		records += len(r.Records)
	}
	logger.Info("analysis complete",
		zap.Int("areas", len(report.Results)),
		zap.Int("records", records),
		zap.Strings("files", report.Files),
		zap.Duration("dur", time.Since(start)),
	)
	return nil
}

// launcher picks the isolation boundary. Process isolation re-executes this
// binary as "etacalc worker" with the same oracle settings.
func (a *app) launcher(ctx context.Context, mode string, opts factoryOptions, m *metrics.Metrics, conn *sql.DB) (ports.AreaLauncher, func(), error) {
	switch mode {
	case config.IsolationProcess:
		l, err := isolation.NewSelfLauncher("worker",
			"--oracle", opts.kind,
			"--speed", fmt.Sprint(opts.speedKmh),
		)
		if err != nil {
			return nil, nil, err
		}
		return l, func() {}, nil
	case config.IsolationInProcess:
		factory, closeFn, err := a.oracleFactory(ctx, opts, m, conn)
		if err != nil {
			return nil, nil, err
		}
		return &isolation.InProcessLauncher{Factory: factory}, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown isolation %q", mode)
	}
}
