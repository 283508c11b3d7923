package domain

import (
	"math"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// One output row: origin properties, coordinates and the travel time in
// seconds to the nearest POI of each type. An unreachable type is +Inf in
// memory and null on the wire.
type ETARecord struct {
	Properties map[string]any
	Lat        float64
	Lon        float64
	ETA        map[string]float64
}

type etaRecordWire struct {
	Properties map[string]any      `json:"properties"`
	Lat        float64             `json:"lat"`
	Lon        float64             `json:"lon"`
	ETA        map[string]*float64 `json:"eta"`
}

func (r ETARecord) MarshalJSON() ([]byte, error) {
	w := etaRecordWire{
		Properties: r.Properties,
		Lat:        r.Lat,
		Lon:        r.Lon,
		ETA:        make(map[string]*float64, len(r.ETA)),
	}
	for k, v := range r.ETA {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			w.ETA[k] = nil
			continue
		}
		w.ETA[k] = &v
	}
	return json.Marshal(w)
}

func (r *ETARecord) UnmarshalJSON(b []byte) error {
	var w etaRecordWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	r.Properties = w.Properties
	r.Lat = w.Lat
	r.Lon = w.Lon
	r.ETA = make(map[string]float64, len(w.ETA))
	for k, v := range w.ETA {
		if v == nil {
			r.ETA[k] = math.Inf(1)
			continue
		}
		r.ETA[k] = *v
	}
	return nil
}

// Reachable reports whether the record has a finite ETA for the POI type.
func (r ETARecord) Reachable(poiType string) bool {
	v, ok := r.ETA[poiType]
	return ok && !math.IsInf(v, 0)
}
