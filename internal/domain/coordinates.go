package domain

import (
	"strconv"

	"github.com/paulmach/orb"
)

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64
	Lat float64
}

func CoordinatesOf(p orb.Point) Coordinates { return Coordinates{Lon: p.Lon(), Lat: p.Lat()} }

func (c Coordinates) Point() orb.Point { return orb.Point{c.Lon, c.Lat} }

// Return coordinates as "lon,lat" for routing engine URLs.
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(c.Lat, 'f', 6, 64)
}
