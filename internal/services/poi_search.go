package services

import (
	"context"
	"fmt"

	"accessibility-eta-service/internal/domain"
	"accessibility-eta-service/internal/spatial"
)

// Candidate POIs of one type for one work area.
type POISearchResult struct {
	POIs []domain.POI
	// Time budget of the last buffer tried.
	TimeSeconds float64
	Iterations  int
	// Exhausted is set when the iteration cap stopped the search before
	// enough candidates were found.
	Exhausted bool
}

// SearchPOIs grows a time-derived buffer around the cell's work area until
// it holds at least min(|category|, MinPOICandidates) POIs of the indexed
// category. It stops early when ctx is done.
func SearchPOIs(ctx context.Context, index *spatial.POIIndex, cell spatial.Cell, cfg domain.EngineConfig) (POISearchResult, error) {
	total := 0
	if index != nil {
		total = index.Len()
	}
	minRequired := min(total, cfg.MinPOICandidates)

	res := POISearchResult{TimeSeconds: cfg.MaxTimeSeconds}
	for {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("poi search: %w", err)
		}
		res.Iterations++
		if total > 0 {
			res.POIs = index.NearCell(cell, bufferMeters(res.TimeSeconds, cfg.MaxSpeedKmh))
		}
		if len(res.POIs) >= minRequired {
			return res, nil
		}
		if cfg.MaxBufferIterations > 0 && res.Iterations >= cfg.MaxBufferIterations {
			res.Exhausted = true
			return res, nil
		}
		res.TimeSeconds += cfg.BufferStepSeconds
	}
}

func bufferMeters(timeSeconds, speedKmh float64) float64 {
	return timeSeconds / 3600 * speedKmh * 1000
}
