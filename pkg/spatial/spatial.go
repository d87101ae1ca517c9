// Package spatial implements the spatial index: bounding-box, nearest and
// containment queries over entity geometries, plus the distance math the
// retriever's proximity scoring uses. All coordinates are WGS84.
package spatial

import (
	"math"

	"github.com/soundprediction/cartograph/pkg/types"
)

const (
	earthRadiusMeters = 6371000.0
	// metersPerDegree is the equatorial approximation used for degree/meter
	// conversions on bounding boxes and grid cells.
	metersPerDegree = 111320.0
)

// DistanceMeters returns the haversine distance between two points.
func DistanceMeters(a, b types.Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DistanceToGeometry returns the distance from p to the nearest part of g:
// zero when p lies inside a polygon ring, otherwise the distance to the
// point or the nearest ring vertex.
func DistanceToGeometry(p types.Point, g *types.Geometry) float64 {
	switch {
	case g.IsPoint():
		return DistanceMeters(p, *g.Point)
	case g.IsPolygon():
		if pointInRing(p, g.Ring) {
			return 0
		}
		min := math.Inf(1)
		for _, v := range g.Ring {
			if d := DistanceMeters(p, v); d < min {
				min = d
			}
		}
		return min
	default:
		return math.Inf(1)
	}
}

// Satisfies reports whether candidate geometry g matches the constraint, and
// the distance in meters from g's center to the constraint geometry. The
// distance feeds the retriever's proximity bonus.
func Satisfies(g *types.Geometry, c *types.SpatialConstraint) (bool, float64) {
	if g == nil || (!g.IsPoint() && !g.IsPolygon()) {
		return false, math.Inf(1)
	}
	center := g.Center()
	dist := DistanceToGeometry(center, &c.Geometry)

	switch c.Predicate {
	case types.PredicateWithin:
		return contains(&c.Geometry, center), dist
	case types.PredicateNear:
		radius := c.RadiusMeters
		if radius <= 0 {
			radius = DefaultNearRadiusMeters
		}
		return dist <= radius, dist
	case types.PredicateIntersects:
		return intersects(&c.Geometry, g), dist
	default:
		return false, dist
	}
}

// DefaultNearRadiusMeters applies when a NEAR constraint carries no radius.
const DefaultNearRadiusMeters = 50000.0

// contains reports whether the query geometry contains point p. A point
// query geometry contains only points within a small tolerance.
func contains(query *types.Geometry, p types.Point) bool {
	if query.IsPolygon() {
		return pointInRing(p, query.Ring)
	}
	return DistanceMeters(*query.Point, p) < 1.0
}

// intersects reports whether the two geometries overlap. Polygon/polygon
// intersection is approximated by mutual vertex containment, which is
// sufficient for the region footprints the graph stores.
func intersects(query *types.Geometry, g *types.Geometry) bool {
	if g.IsPoint() {
		return contains(query, *g.Point)
	}
	if query.IsPoint() {
		return pointInRing(*query.Point, g.Ring)
	}
	for _, v := range g.Ring {
		if pointInRing(v, query.Ring) {
			return true
		}
	}
	for _, v := range query.Ring {
		if pointInRing(v, g.Ring) {
			return true
		}
	}
	return false
}

// pointInRing is a ray-casting point-in-polygon test.
func pointInRing(p types.Point, ring []types.Point) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		vi, vj := ring[i], ring[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) &&
			p.Lon < (vj.Lon-vi.Lon)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat)+vi.Lon {
			inside = !inside
		}
		j = i
	}
	return inside
}

// BoundingBox returns the lat/lon extent of g, expanded by padMeters.
func BoundingBox(g *types.Geometry, padMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	if g.IsPoint() {
		minLat, maxLat = g.Point.Lat, g.Point.Lat
		minLon, maxLon = g.Point.Lon, g.Point.Lon
	} else {
		minLat, minLon = math.Inf(1), math.Inf(1)
		maxLat, maxLon = math.Inf(-1), math.Inf(-1)
		for _, p := range g.Ring {
			minLat = math.Min(minLat, p.Lat)
			minLon = math.Min(minLon, p.Lon)
			maxLat = math.Max(maxLat, p.Lat)
			maxLon = math.Max(maxLon, p.Lon)
		}
	}
	pad := padMeters / metersPerDegree
	return minLat - pad, minLon - pad, maxLat + pad, maxLon + pad
}
