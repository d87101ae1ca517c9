package spatial

import (
	"sort"
	"sync"

	"github.com/soundprediction/cartograph/pkg/types"
)

// Match is one grid query hit, ordered nearest-first by the caller.
type Match struct {
	ID             string
	DistanceMeters float64
}

// Grid is a uniform degree-grid index over entity geometries. Cells bucket
// entity ids by the geometry center; predicate checks run against the full
// geometry. Safe for concurrent readers; writes take the exclusive lock.
type Grid struct {
	cellDegrees float64

	mu    sync.RWMutex
	cells map[cellKey][]string
	geoms map[string]*types.Geometry
}

type cellKey struct{ row, col int }

// NewGrid creates a grid index. cellDegrees <= 0 defaults to 1 degree
// (about 111 km at the equator).
func NewGrid(cellDegrees float64) *Grid {
	if cellDegrees <= 0 {
		cellDegrees = 1.0
	}
	return &Grid{
		cellDegrees: cellDegrees,
		cells:       make(map[cellKey][]string),
		geoms:       make(map[string]*types.Geometry),
	}
}

func (g *Grid) keyFor(p types.Point) cellKey {
	return cellKey{
		row: int(p.Lat / g.cellDegrees),
		col: int(p.Lon / g.cellDegrees),
	}
}

// Insert adds or replaces the geometry for id. A nil geometry removes it.
func (g *Grid) Insert(id string, geom *types.Geometry) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.geoms[id]; ok {
		key := g.keyFor(old.Center())
		bucket := g.cells[key]
		for i, v := range bucket {
			if v == id {
				g.cells[key] = append(bucket[:i], bucket[i+1:]...)
				break
			}
		}
		delete(g.geoms, id)
	}
	if geom == nil || (!geom.IsPoint() && !geom.IsPolygon()) {
		return
	}
	key := g.keyFor(geom.Center())
	g.cells[key] = append(g.cells[key], id)
	g.geoms[id] = geom
}

// Query returns ids whose geometry satisfies the constraint, nearest-first
// with id as the tie-break so results are deterministic.
func (g *Grid) Query(c *types.SpatialConstraint) []Match {
	pad := c.RadiusMeters
	if c.Predicate == types.PredicateNear && pad <= 0 {
		pad = DefaultNearRadiusMeters
	}
	minLat, minLon, maxLat, maxLon := BoundingBox(&c.Geometry, pad)

	g.mu.RLock()
	defer g.mu.RUnlock()

	minKey := g.keyFor(types.Point{Lat: minLat, Lon: minLon})
	maxKey := g.keyFor(types.Point{Lat: maxLat, Lon: maxLon})

	var matches []Match
	for row := minKey.row; row <= maxKey.row; row++ {
		for col := minKey.col; col <= maxKey.col; col++ {
			for _, id := range g.cells[cellKey{row, col}] {
				geom := g.geoms[id]
				if ok, dist := Satisfies(geom, c); ok {
					matches = append(matches, Match{ID: id, DistanceMeters: dist})
				}
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceMeters != matches[j].DistanceMeters {
			return matches[i].DistanceMeters < matches[j].DistanceMeters
		}
		return matches[i].ID < matches[j].ID
	})
	return matches
}

// Len returns the number of indexed geometries.
func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.geoms)
}
