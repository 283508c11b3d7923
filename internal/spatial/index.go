package spatial

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/quadtree"

	"accessibility-eta-service/internal/domain"
)

type originPointer struct{ o *domain.Origin }

func (p originPointer) Point() orb.Point { return p.o.Point }

type poiPointer struct{ p *domain.POI }

func (p poiPointer) Point() orb.Point { return p.p.Point }

func newQuadtree(points []orb.Point) *quadtree.Quadtree {
	if len(points) == 0 {
		return nil
	}
	b := orb.MultiPoint(points).Bound()
	return quadtree.New(b.Pad(1e-6))
}

// OriginIndex answers "origins inside a work area" queries.
type OriginIndex struct {
	qt *quadtree.Quadtree
}

func NewOriginIndex(origins []domain.Origin) *OriginIndex {
	points := make([]orb.Point, len(origins))
	for i := range origins {
		points[i] = origins[i].Point
	}

	idx := &OriginIndex{qt: newQuadtree(points)}
	for i := range origins {
		// Points are always inside the padded bound of their own set.
		_ = idx.qt.Add(originPointer{o: &origins[i]})
	}
	return idx
}

// InCell returns the origins inside the cell's work area that the cell owns,
// in input order.
func (idx *OriginIndex) InCell(cell Cell) []domain.Origin {
	if idx.qt == nil || cell.WorkArea == nil {
		return nil
	}

	found := idx.qt.InBound(nil, cell.WorkArea.Bound())
	out := make([]domain.Origin, 0, len(found))
	for _, f := range found {
		o := f.(originPointer).o
		if !cell.Owns(o.Point) || !cell.Contains(o.Point) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// POIIndex holds one POI category.
type POIIndex struct {
	qt    *quadtree.Quadtree
	total int
}

func NewPOIIndex(pois []domain.POI) *POIIndex {
	points := make([]orb.Point, len(pois))
	for i := range pois {
		points[i] = pois[i].Point
	}

	idx := &POIIndex{qt: newQuadtree(points), total: len(pois)}
	for i := range pois {
		_ = idx.qt.Add(poiPointer{p: &pois[i]})
	}
	return idx
}

// Len is the size of the whole category.
func (idx *POIIndex) Len() int { return idx.total }

// WithinBuffer returns the POIs inside area or at most meters away from it,
// in input order.
func (idx *POIIndex) WithinBuffer(area orb.MultiPolygon, meters float64) []domain.POI {
	if len(area) == 0 {
		return nil
	}
	return idx.within(area.Bound(), meters, func(p orb.Point) float64 { return DistanceToArea(area, p) })
}

// NearCell is WithinBuffer measured against the work area of a cell.
func (idx *POIIndex) NearCell(cell Cell, meters float64) []domain.POI {
	if cell.WorkArea == nil {
		return nil
	}
	return idx.within(cell.WorkArea.Bound(), meters, cell.DistanceTo)
}

func (idx *POIIndex) within(b orb.Bound, meters float64, distance func(orb.Point) float64) []domain.POI {
	if idx.qt == nil {
		return nil
	}

	found := idx.qt.InBound(nil, geo.BoundPad(b, meters))
	out := make([]domain.POI, 0, len(found))
	for _, f := range found {
		p := f.(poiPointer).p
		if distance(p.Point) <= meters {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Indexes builds one POIIndex per category.
func Indexes(pois domain.POIsByType) map[string]*POIIndex {
	out := make(map[string]*POIIndex, len(pois))
	for t, list := range pois {
		out[t] = NewPOIIndex(list)
	}
	return out
}
