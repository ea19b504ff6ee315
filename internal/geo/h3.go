package geo

import (
	"math"

	"github.com/uber/h3-go/v4"

	"xpress/internal/types"
)

// Neighborhood-level resolution: ~0.74 km² average hexagon, ~0.46 km edge.
const (
	cellResolution = 8
	cellEdgeKm     = 0.46
)

// CellIndex buckets points into H3 hexagonal cells so radius queries over an
// in-memory set only touch candidates in nearby cells.
type CellIndex struct{}

// CellFor returns the H3 cell containing the point.
func (CellIndex) CellFor(p types.Point) h3.Cell {
	return h3.LatLngToCell(h3.LatLng{Lat: p.Lat, Lng: p.Lng}, cellResolution)
}

// Covering returns every cell within radiusKm of the point, as the grid disk
// whose ring count covers the radius at this resolution.
func (ci CellIndex) Covering(p types.Point, radiusKm float64) []h3.Cell {
	k := int(math.Ceil(radiusKm / cellEdgeKm))
	return h3.GridDisk(ci.CellFor(p), k)
}
