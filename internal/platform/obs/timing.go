package obs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"accessibility-eta-service/internal/platform/metrics"
)

type ctxKey string

const (
	RunIDKey   ctxKey = "run_id"
	AreaIDKey  ctxKey = "area_id"
	loggerKey  ctxKey = "logger"
	metricsKey ctxKey = "metrics"
)

func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

func WithMetrics(ctx context.Context, m *metrics.Metrics) context.Context {
	return context.WithValue(ctx, metricsKey, m)
}

// Logger returns the context logger tagged with the run and area ids, or a
// no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	l, _ := ctx.Value(loggerKey).(*zap.Logger)
	if l == nil {
		l = zap.NewNop()
	}
	if runID, ok := ctx.Value(RunIDKey).(string); ok && runID != "" {
		l = l.With(zap.String("run_id", runID))
	}
	if areaID, ok := ctx.Value(AreaIDKey).(string); ok && areaID != "" {
		l = l.With(zap.String("area_id", areaID))
	}
	return l
}

func Metrics(ctx context.Context) *metrics.Metrics {
	m, _ := ctx.Value(metricsKey).(*metrics.Metrics)
	return m
}

// Time measures an operation; call the returned func with a pointer to the
// named error result.
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	return func(errp *error) {
		dur := time.Since(start)
		Metrics(ctx).ObserveOp(name, dur.Seconds())

		if errp != nil && *errp != nil {
			Logger(ctx).Warn("op failed", zap.String("op", name), zap.Duration("dur", dur), zap.Error(*errp))
			return
		}
		Logger(ctx).Debug("op done", zap.String("op", name), zap.Duration("dur", dur))
	}
}
