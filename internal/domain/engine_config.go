package domain

import (
	"errors"
	"fmt"
)

const (
	DefaultGridSizeKm        = 30
	DefaultBufferStepSeconds = 900
	DefaultMinPOICandidates  = 4
	DefaultWalkSpeedKmh      = 4
)

// Numeric parameters of one region run.
type EngineConfig struct {
	GridSizeKm     float64 `json:"grid_size_km"`
	MaxTimeSeconds float64 `json:"max_time_seconds"`
	MaxSpeedKmh    float64 `json:"max_speed_kmh"`

	// Buffer search growth. MaxBufferIterations == 0 means no cap.
	BufferStepSeconds   float64 `json:"buffer_step_seconds"`
	MaxBufferIterations int     `json:"max_buffer_iterations"`
	MinPOICandidates    int     `json:"min_poi_candidates"`

	WalkSpeedKmh float64 `json:"walk_speed_kmh"`

	AreaConcurrency   int `json:"area_concurrency"`
	SquareConcurrency int `json:"square_concurrency"`
}

// WithDefaults fills zero values with the engine defaults.
func (c EngineConfig) WithDefaults() EngineConfig {
	if c.GridSizeKm == 0 {
		c.GridSizeKm = DefaultGridSizeKm
	}
	if c.BufferStepSeconds == 0 {
		c.BufferStepSeconds = DefaultBufferStepSeconds
	}
	if c.MinPOICandidates == 0 {
		c.MinPOICandidates = DefaultMinPOICandidates
	}
	if c.WalkSpeedKmh == 0 {
		c.WalkSpeedKmh = DefaultWalkSpeedKmh
	}
	if c.AreaConcurrency == 0 {
		c.AreaConcurrency = 1
	}
	if c.SquareConcurrency == 0 {
		c.SquareConcurrency = 1
	}
	return c
}

func (c EngineConfig) Validate() error {
	var errs []error
	if c.GridSizeKm <= 0 {
		errs = append(errs, fmt.Errorf("grid size must be positive, got %v", c.GridSizeKm))
	}
	if c.MaxTimeSeconds < 0 {
		errs = append(errs, fmt.Errorf("max time must not be negative, got %v", c.MaxTimeSeconds))
	}
	if c.MaxSpeedKmh <= 0 {
		errs = append(errs, fmt.Errorf("max speed must be positive, got %v", c.MaxSpeedKmh))
	}
	if c.BufferStepSeconds <= 0 {
		errs = append(errs, fmt.Errorf("buffer step must be positive, got %v", c.BufferStepSeconds))
	}
	if c.MaxBufferIterations < 0 {
		errs = append(errs, fmt.Errorf("max buffer iterations must not be negative, got %d", c.MaxBufferIterations))
	}
	if c.AreaConcurrency < 1 || c.SquareConcurrency < 1 {
		errs = append(errs, errors.New("concurrency limits must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("engine config: %w", errors.Join(errs...))
	}
	return nil
}
