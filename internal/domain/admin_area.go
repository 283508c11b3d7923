package domain

import "github.com/paulmach/orb"

// Represents a named region whose interior origins are analyzed.
// Admin areas are immutable inputs; a Polygon input is normalized to a
// single-member MultiPolygon by the loaders.
type AdminArea struct {
	ID         string
	Name       string
	Geometry   orb.MultiPolygon
	Properties map[string]any
}

// Work handed to one area worker: the admin area plus the shared inputs.
type AreaJob struct {
	RunID  string
	Area   AdminArea
	Inputs SharedInputs
	Config EngineConfig
}

// Origins and POIs shared by every area of a region run.
type SharedInputs struct {
	Origins []Origin
	POIs    POIsByType
}

// Per-area output tagged with the admin area identity.
type AreaResult struct {
	AreaID         string
	AreaName       string
	AreaProperties map[string]any
	Records        []ETARecord
}
