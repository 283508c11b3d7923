package spatial

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const degToMeters = orb.EarthRadius * math.Pi / 180

// DistanceToArea returns the distance in meters from p to the nearest edge
// of area, or 0 when p lies inside it.
func DistanceToArea(area orb.MultiPolygon, p orb.Point) float64 {
	if planar.MultiPolygonContains(area, p) {
		return 0
	}
	best := math.Inf(1)
	eachEdge(area, func(a, b orb.Point) {
		best = math.Min(best, segmentDistance(a, b, p))
	})
	return best
}

// DistanceTo returns the distance in meters from p to the work area of the
// cell, or 0 when p lies inside it. Stretches of the cell border that run
// outside the admin area are not part of the work area and are skipped.
func (c Cell) DistanceTo(p orb.Point) float64 {
	if c.Contains(p) {
		return 0
	}
	if c.area == nil {
		return DistanceToArea(c.WorkArea, p)
	}

	vertices := allVertices(c.WorkArea)
	best := math.Inf(1)
	eachEdge(c.WorkArea, func(a, b orb.Point) {
		if !c.onBorder(a, b) {
			best = math.Min(best, segmentDistance(a, b, p))
			return
		}
		for _, s := range splitAt(a, b, vertices) {
			mid := orb.Point{(s[0].X() + s[1].X()) / 2, (s[0].Y() + s[1].Y()) / 2}
			if planar.MultiPolygonContains(c.area, mid) {
				best = math.Min(best, segmentDistance(s[0], s[1], p))
			}
		}
	})
	return best
}

func (c Cell) onBorder(a, b orb.Point) bool {
	if a.X() == b.X() {
		return a.X() == c.Bound.Min.X() || a.X() == c.Bound.Max.X()
	}
	if a.Y() == b.Y() {
		return a.Y() == c.Bound.Min.Y() || a.Y() == c.Bound.Max.Y()
	}
	return false
}

// splitAt cuts the axis aligned segment a-b at every vertex lying strictly
// inside it.
func splitAt(a, b orb.Point, vertices []orb.Point) [][2]orb.Point {
	horizontal := a.Y() == b.Y()
	coord := func(q orb.Point) float64 {
		if horizontal {
			return q.X()
		}
		return q.Y()
	}
	lo, hi := min(coord(a), coord(b)), max(coord(a), coord(b))

	cuts := []float64{lo, hi}
	for _, v := range vertices {
		if (horizontal && v.Y() != a.Y()) || (!horizontal && v.X() != a.X()) {
			continue
		}
		if c := coord(v); c > lo && c < hi {
			cuts = append(cuts, c)
		}
	}
	slices.Sort(cuts)
	cuts = slices.Compact(cuts)

	out := make([][2]orb.Point, 0, len(cuts)-1)
	for i := 0; i+1 < len(cuts); i++ {
		if horizontal {
			out = append(out, [2]orb.Point{{cuts[i], a.Y()}, {cuts[i+1], a.Y()}})
		} else {
			out = append(out, [2]orb.Point{{a.X(), cuts[i]}, {a.X(), cuts[i+1]}})
		}
	}
	return out
}

func eachEdge(area orb.MultiPolygon, fn func(a, b orb.Point)) {
	for _, poly := range area {
		for _, ring := range poly {
			n := len(ring)
			for i := 0; i+1 < n; i++ {
				fn(ring[i], ring[i+1])
			}
			if n > 1 && !ring[0].Equal(ring[n-1]) {
				fn(ring[n-1], ring[0])
			}
		}
	}
}

func allVertices(area orb.MultiPolygon) []orb.Point {
	var out []orb.Point
	for _, poly := range area {
		for _, ring := range poly {
			out = append(out, ring...)
		}
	}
	return out
}

// segmentDistance projects the segment onto a local equirectangular plane
// centred on p, which is accurate for buffer sized distances.
func segmentDistance(a, b, p orb.Point) float64 {
	return planar.DistanceFromSegment(toLocal(a, p), toLocal(b, p), orb.Point{0, 0})
}

func toLocal(q, origin orb.Point) orb.Point {
	kx := degToMeters * math.Cos(origin.Lat()*math.Pi/180)
	return orb.Point{(q.Lon() - origin.Lon()) * kx, (q.Lat() - origin.Lat()) * degToMeters}
}
