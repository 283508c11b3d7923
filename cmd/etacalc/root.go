package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"accessibility-eta-service/internal/adapters/cache"
	"accessibility-eta-service/internal/adapters/oracle"
	"accessibility-eta-service/internal/config"
	"accessibility-eta-service/internal/platform/logging"
	"accessibility-eta-service/internal/platform/metrics"
	"accessibility-eta-service/internal/ports"
)

const (
	oracleOSRM         = "osrm"
	oracleStraightLine = "straight-line"
)

type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "etacalc",
		Short:         "Compute travel times from origins to the nearest points of interest",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.AddCommand(newRunCmd(a), newWorkerCmd(a))
	return root
}

type factoryOptions struct {
	kind     string
	speedKmh float64
}

// oracleFactory builds the routing oracle factory plus the nearest cache
// behind it. close releases the cache connections.
func (a *app) oracleFactory(ctx context.Context, opts factoryOptions, m *metrics.Metrics, conn *sql.DB) (_ ports.OracleFactory, closeFn func(), err error) {
	closeFn = func() {}

	switch opts.kind {
	case oracleStraightLine:
		a.logger.Warn("using straight-line oracle; travel times are not routed", zap.Float64("speed_kmh", opts.speedKmh))
		return oracle.NewStraightLineOracle(opts.speedKmh).Factory(), closeFn, nil
	case oracleOSRM:
	default:
		return nil, closeFn, fmt.Errorf("unknown oracle %q", opts.kind)
	}

	if a.cfg.OSRMURL == "" {
		return nil, closeFn, fmt.Errorf("OSRM_URL is required for the %s oracle", oracleOSRM)
	}

	var nearest ports.NearestCache
	switch {
	case a.cfg.RedisAddr != "":
		rdb, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		if err != nil {
			return nil, closeFn, err
		}
		closeFn = func() { _ = rdb.Close() }
		nearest = cache.NewRedisNearestCache(rdb, a.cfg.OSRMProfile, a.cfg.NearestCacheTTL)
		a.logger.Info("nearest cache enabled", zap.String("backend", "redis"), zap.Duration("ttl", a.cfg.NearestCacheTTL))
	case conn != nil:
		nearest = cache.NewSQLNearestCache(conn, a.cfg.OSRMProfile)
		a.logger.Info("nearest cache enabled", zap.String("backend", "postgres"))
	}

	factory := oracle.NewOSRMFactory(oracle.OSRMConfig{
		BaseURL:         a.cfg.OSRMURL,
		Profile:         a.cfg.OSRMProfile,
		Timeout:         a.cfg.OSRMTimeout,
		MaxRetries:      a.cfg.OSRMMaxRetries,
		RPS:             a.cfg.OSRMRPS,
		TableMaxSources: a.cfg.OSRMTableMaxSources,
	}, nearest, m)
	return factory, closeFn, nil
}

func shutdownTimeout() time.Duration { return 5 * time.Second }
