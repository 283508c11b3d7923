// Package config reads process configuration from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"accessibility-eta-service/internal/domain"
)

const (
	IsolationInProcess = "inprocess"
	IsolationProcess   = "process"
)

type Config struct {
	Engine domain.EngineConfig

	OSRMURL             string
	OSRMProfile         string
	OSRMTimeout         time.Duration
	OSRMMaxRetries      int
	OSRMRPS             float64
	OSRMTableMaxSources int

	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	NearestCacheTTL time.Duration

	LogLevel  string
	LogFormat string
	OpsAddr   string

	Isolation string
}

// LoadDotEnv loads .env into the environment when present. Existing
// variables win.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cpus := runtime.NumCPU()
	cfg := Config{
		OSRMURL:       strings.TrimSpace(Get("OSRM_URL", "")),
		OSRMProfile:   Get("OSRM_PROFILE", "driving"),
		DatabaseURL:   strings.TrimSpace(Get("DATABASE_URL", "")),
		RedisAddr:     strings.TrimSpace(Get("REDIS_ADDR", "")),
		RedisPassword: Get("REDIS_PASS", ""),
		LogLevel:      Get("LOG_LEVEL", "info"),
		LogFormat:     Get("LOG_FORMAT", "console"),
		OpsAddr:       strings.TrimSpace(Get("OPS_ADDR", "")),
		Isolation:     strings.ToLower(Get("WORKER_ISOLATION", IsolationInProcess)),
	}

	var err error
	e := &cfg.Engine
	e.GridSizeKm, err = GetFloat("GRID_SIZE_KM", domain.DefaultGridSizeKm)
	collect(err)
	e.MaxTimeSeconds, err = GetFloat("MAX_TIME_SECONDS", 3600)
	collect(err)
	e.MaxSpeedKmh, err = GetFloat("MAX_SPEED_KMH", 120)
	collect(err)
	e.BufferStepSeconds, err = GetFloat("BUFFER_STEP_SECONDS", domain.DefaultBufferStepSeconds)
	collect(err)
	e.MaxBufferIterations, err = GetInt("BUFFER_MAX_ITERATIONS", 0)
	collect(err)
	e.MinPOICandidates, err = GetInt("MIN_POI_CANDIDATES", domain.DefaultMinPOICandidates)
	collect(err)
	e.WalkSpeedKmh, err = GetFloat("WALK_SPEED_KMH", domain.DefaultWalkSpeedKmh)
	collect(err)
	e.AreaConcurrency, err = GetInt("AREA_CONCURRENCY", max(1, cpus*3/2))
	collect(err)
	e.SquareConcurrency, err = GetInt("SQUARE_CONCURRENCY", cpus)
	collect(err)

	cfg.OSRMTimeout, err = GetDuration("OSRM_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.OSRMMaxRetries, err = GetInt("OSRM_MAX_RETRIES", 3)
	collect(err)
	cfg.OSRMRPS, err = GetFloat("OSRM_RPS", 0)
	collect(err)
	cfg.OSRMTableMaxSources, err = GetInt("OSRM_TABLE_MAX_SOURCES", 100)
	collect(err)
	cfg.RedisDB, err = GetInt("REDIS_DB", 0)
	collect(err)
	cfg.NearestCacheTTL, err = GetDuration("NEAREST_CACHE_TTL", 24*time.Hour)
	collect(err)

	if len(errs) == 0 {
		collect(cfg.Validate())
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("load config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Isolation {
	case IsolationInProcess, IsolationProcess:
	default:
		errs = append(errs, fmt.Errorf("WORKER_ISOLATION must be %q or %q, got %q", IsolationInProcess, IsolationProcess, c.Isolation))
	}
	if c.OSRMMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("OSRM_MAX_RETRIES must not be negative, got %d", c.OSRMMaxRetries))
	}
	if c.OSRMTableMaxSources < 1 {
		errs = append(errs, fmt.Errorf("OSRM_TABLE_MAX_SOURCES must be at least 1, got %d", c.OSRMTableMaxSources))
	}
	return errors.Join(errs...)
}

// Get returns the value of key or fallback when unset or empty.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func GetFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func GetBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func GetDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
