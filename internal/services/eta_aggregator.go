package services

import (
	"fmt"
	"maps"
	"math"
	"sort"

	"accessibility-eta-service/internal/domain"
)

// AggregateETAs builds one record per origin, in origin order.
// durations holds one matrix per POI type with a row per origin; a nil entry
// is no route. The nearest-road distance is walked at walkSpeedKmh and added
// to the best road time.
func AggregateETAs(origins []domain.Origin, nearest []float64, durations map[string][][]*float64, walkSpeedKmh float64) ([]domain.ETARecord, error) {
	if len(nearest) != len(origins) {
		return nil, fmt.Errorf("aggregate etas: %d nearest distances for %d origins", len(nearest), len(origins))
	}

	types := make([]string, 0, len(durations))
	for t, m := range durations {
		if len(m) != len(origins) {
			return nil, fmt.Errorf("aggregate etas: type %q has %d rows for %d origins", t, len(m), len(origins))
		}
		types = append(types, t)
	}
	sort.Strings(types)

	walkMps := walkSpeedKmh * 1000 / 3600

	records := make([]domain.ETARecord, 0, len(origins))
	for i, o := range origins {
		rec := domain.ETARecord{
			Properties: maps.Clone(o.Properties),
			Lat:        o.Point.Lat(),
			Lon:        o.Point.Lon(),
			ETA:        make(map[string]float64, len(types)),
		}
		for _, t := range types {
			rec.ETA[t] = roadETA(durations[t][i]) + nearest[i]*walkMps
		}
		records = append(records, rec)
	}
	return records, nil
}

// roadETA is the row minimum with nil treated as +Inf.
func roadETA(row []*float64) float64 {
	best := math.Inf(1)
	for _, d := range row {
		if d != nil && *d < best {
			best = *d
		}
	}
	return best
}
