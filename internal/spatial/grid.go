// Package spatial splits admin areas into grid cells and answers the
// point-in-area and buffer queries the square tasks need.
package spatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"

	"accessibility-eta-service/internal/domain"
)

// Cell is one grid square and its clipped work area. WorkArea is nil when
// the square does not intersect the admin area.
type Cell struct {
	Bound    orb.Bound
	WorkArea orb.MultiPolygon

	// Admin area geometry the work area was clipped from.
	area orb.MultiPolygon

	// Cells own their west and south edges; the last column and row also
	// own the east and north edges so every point belongs to one cell.
	closedEast  bool
	closedNorth bool
}

// Owns reports whether p falls in the half-open square of the cell.
func (c Cell) Owns(p orb.Point) bool {
	if p.Lon() < c.Bound.Min.Lon() || p.Lat() < c.Bound.Min.Lat() {
		return false
	}
	if p.Lon() > c.Bound.Max.Lon() || (p.Lon() == c.Bound.Max.Lon() && !c.closedEast) {
		return false
	}
	if p.Lat() > c.Bound.Max.Lat() || (p.Lat() == c.Bound.Max.Lat() && !c.closedNorth) {
		return false
	}
	return true
}

// Contains reports whether p lies in the work area. Points on zero-width
// edges that clipping adds across gaps of a concave admin area are outside.
func (c Cell) Contains(p orb.Point) bool {
	if c.WorkArea == nil || !planar.MultiPolygonContains(c.WorkArea, p) {
		return false
	}
	return c.area == nil || planar.MultiPolygonContains(c.area, p)
}

// SquareGrid covers bound with square cells of cellKm side. Cell sizes in
// degrees are derived from the geodesic length of one degree along the
// south edge. The grid is centred on the bound and always covers it fully.
// Cells are ordered column by column, west to east, south to north.
func SquareGrid(bound orb.Bound, cellKm float64) []orb.Bound {
	cells, _, _ := squareGrid(bound, cellKm)
	return cells
}

func squareGrid(bound orb.Bound, cellKm float64) ([]orb.Bound, int, int) {
	if cellKm <= 0 {
		return nil, 0, 0
	}
	west, south := bound.Min.Lon(), bound.Min.Lat()
	width := bound.Max.Lon() - west
	height := bound.Max.Lat() - south

	cellMeters := cellKm * 1000
	cellWidth := cellMeters / math.Max(geo.Distance(orb.Point{0, south}, orb.Point{1, south}), 1)
	cellHeight := cellMeters / geo.Distance(orb.Point{0, 0}, orb.Point{0, 1})

	columns := cellCount(width, cellWidth)
	rows := cellCount(height, cellHeight)

	startX := west - (float64(columns)*cellWidth-width)/2
	startY := south - (float64(rows)*cellHeight-height)/2

	cells := make([]orb.Bound, 0, columns*rows)
	for c := 0; c < columns; c++ {
		x0 := startX + float64(c)*cellWidth
		x1 := startX + float64(c+1)*cellWidth
		for r := 0; r < rows; r++ {
			y0 := startY + float64(r)*cellHeight
			y1 := startY + float64(r+1)*cellHeight
			cells = append(cells, orb.Bound{Min: orb.Point{x0, y0}, Max: orb.Point{x1, y1}})
		}
	}
	return cells, columns, rows
}

func cellCount(extent, cell float64) int {
	n := int(math.Ceil(extent/cell - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

// Partition splits an admin area into grid cells and clips each against the
// area geometry.
func Partition(area domain.AdminArea, cellKm float64) []Cell {
	if len(area.Geometry) == 0 {
		return nil
	}
	bounds, columns, rows := squareGrid(area.Geometry.Bound(), cellKm)
	cells := make([]Cell, 0, len(bounds))
	for i, b := range bounds {
		cells = append(cells, Cell{
			Bound:       b,
			WorkArea:    Clip(area.Geometry, b),
			area:        area.Geometry,
			closedEast:  i/rows == columns-1,
			closedNorth: i%rows == rows-1,
		})
	}
	return cells
}

// Clip intersects an area with a cell bound. A nil result means the
// intersection is empty or degenerate.
func Clip(area orb.MultiPolygon, b orb.Bound) orb.MultiPolygon {
	if !area.Bound().Intersects(b) {
		return nil
	}
	clipped := clip.MultiPolygon(b, area.Clone())
	if len(clipped) == 0 || planar.Area(clipped) == 0 {
		return nil
	}
	return clipped
}
