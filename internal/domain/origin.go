package domain

import (
	"sort"

	"github.com/paulmach/orb"
)

// A populated place to compute travel times from.
// Seq is the position in the input collection and is only used to restore
// input order after spatial index lookups.
type Origin struct {
	Seq        int
	Point      orb.Point
	Properties map[string]any
}

// A categorized point of interest.
type POI struct {
	Seq   int
	Type  string
	Point orb.Point
}

// POIs grouped by category. Collections are immutable inputs.
type POIsByType map[string][]POI

// Types returns the POI categories in sorted order so per-type work is deterministic.
func (p POIsByType) Types() []string {
	types := make([]string, 0, len(p))
	for t := range p {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
