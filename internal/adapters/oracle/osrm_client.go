package oracle

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"accessibility-eta-service/internal/platform/metrics"
	"accessibility-eta-service/internal/ports"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type OSRMConfig struct {
	BaseURL    string
	Profile    string
	Timeout    time.Duration
	MaxRetries int
	// Requests per second; 0 disables throttling.
	RPS float64
	// Table sources per request; larger source sets are split.
	TableMaxSources int
}

// OSRMClient implements RoutingOracle against an osrm-routed HTTP server.
//
// Every client owns its http.Client and connection pool, so each area
// worker gets an independent handle. Transport failures, 429 and 5xx
// responses are retried with exponential backoff.
type OSRMClient struct {
	session      *http.Client
	baseURL      string
	profile      string
	maxRetries   uint64
	retryInitial time.Duration
	limiter      *rate.Limiter
	maxSources   int
	metrics      *metrics.Metrics
}

func NewOSRMClient(cfg OSRMConfig, m *metrics.Metrics) (*OSRMClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("osrm base url is empty")
	}

	profile := cfg.Profile
	if profile == "" {
		profile = "driving"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxSources := cfg.TableMaxSources
	if maxSources <= 0 {
		maxSources = 100
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	return &OSRMClient{
		session:      &http.Client{Timeout: timeout, Transport: transport},
		baseURL:      baseURL,
		profile:      profile,
		maxRetries:   uint64(retries),
		retryInitial: 200 * time.Millisecond,
		limiter:      limiter,
		maxSources:   maxSources,
		metrics:      m,
	}, nil
}

// Close releases the idle connections of this handle.
func (o *OSRMClient) Close() error {
	o.session.CloseIdleConnections()
	return nil
}

// NewOSRMFactory opens a fresh OSRM client per call, wrapped in a
// read-through nearest cache when one is given.
func NewOSRMFactory(cfg OSRMConfig, cache ports.NearestCache, m *metrics.Metrics) ports.OracleFactory {
	return func(ctx context.Context) (ports.RoutingOracle, error) {
		c, err := NewOSRMClient(cfg, m)
		if err != nil {
			return nil, err
		}
		if cache == nil {
			return c, nil
		}
		return NewCachedOracle(c, cache, m), nil
	}
}
