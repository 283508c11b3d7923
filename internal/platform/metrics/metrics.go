// Package metrics holds the prometheus collectors of the ETA engine.
// All methods are safe on a nil *Metrics so components run without metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	SquaresTotal       *prometheus.CounterVec
	AreasTotal         *prometheus.CounterVec
	AreaWorkersRunning prometheus.Gauge
	OracleRequests     *prometheus.CounterVec
	OracleDuration     *prometheus.HistogramVec
	NearestCache       *prometheus.CounterVec
	OpDuration         *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SquaresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eta_squares_total",
			Help: "Grid squares processed, by outcome",
		}, []string{"outcome"}),
		AreasTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eta_areas_total",
			Help: "Admin areas finished, by status",
		}, []string{"status"}),
		AreaWorkersRunning: f.NewGauge(prometheus.GaugeOpts{
			Name: "eta_area_workers_running",
			Help: "Area workers currently running",
		}),
		OracleRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eta_oracle_requests_total",
			Help: "Routing oracle requests, by operation and HTTP status",
		}, []string{"op", "status"}),
		OracleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eta_oracle_duration_seconds",
			Help:    "Routing oracle request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		NearestCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eta_nearest_cache_total",
			Help: "Nearest-road cache lookups, by result",
		}, []string{"result"}),
		OpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eta_operation_duration_seconds",
			Help:    "Duration of timed internal operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

func (m *Metrics) SquareDone(outcome string) {
	if m == nil {
		return
	}
	m.SquaresTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AreaDone(status string) {
	if m == nil {
		return
	}
	m.AreasTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) WorkersRunning(n int64) {
	if m == nil {
		return
	}
	m.AreaWorkersRunning.Set(float64(n))
}

func (m *Metrics) OracleRequest(op string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.OracleRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	m.OracleDuration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) CacheLookup(hits, misses int) {
	if m == nil {
		return
	}
	m.NearestCache.WithLabelValues("hit").Add(float64(hits))
	m.NearestCache.WithLabelValues("miss").Add(float64(misses))
}

func (m *Metrics) ObserveOp(op string, seconds float64) {
	if m == nil {
		return
	}
	m.OpDuration.WithLabelValues(op).Observe(seconds)
}

// Handler exposes the collectors of g on /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
