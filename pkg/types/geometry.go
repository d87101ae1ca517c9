package types

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Valid reports whether the point lies inside the WGS84 coordinate range.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Geometry is the optional spatial footprint of an entity: either a single
// point or a simple polygon ring. All coordinates are WGS84; no other
// reference system is supported.
type Geometry struct {
	Point *Point  `json:"point,omitempty" yaml:"point,omitempty"`
	Ring  []Point `json:"ring,omitempty" yaml:"ring,omitempty"`
}

// IsPoint reports whether the geometry is a single point.
func (g *Geometry) IsPoint() bool { return g != nil && g.Point != nil }

// IsPolygon reports whether the geometry is a polygon ring.
func (g *Geometry) IsPolygon() bool { return g != nil && len(g.Ring) >= 3 }

// Center returns the point itself, or the centroid of the ring vertices.
func (g *Geometry) Center() Point {
	if g.IsPoint() {
		return *g.Point
	}
	var c Point
	if len(g.Ring) == 0 {
		return c
	}
	for _, p := range g.Ring {
		c.Lat += p.Lat
		c.Lon += p.Lon
	}
	c.Lat /= float64(len(g.Ring))
	c.Lon /= float64(len(g.Ring))
	return c
}

// Validate checks that the geometry is a well-formed point or ring.
func (g *Geometry) Validate() error {
	switch {
	case g == nil:
		return nil
	case g.Point != nil && len(g.Ring) == 0:
		if !g.Point.Valid() {
			return ErrInvalidGeometry
		}
		return nil
	case g.Point == nil && len(g.Ring) >= 3:
		for _, p := range g.Ring {
			if !p.Valid() {
				return ErrInvalidGeometry
			}
		}
		return nil
	default:
		return ErrInvalidGeometry
	}
}

// SpatialPredicate selects how a candidate geometry is tested against a
// query geometry.
type SpatialPredicate string

const (
	// PredicateWithin matches entities contained in the query geometry.
	PredicateWithin SpatialPredicate = "WITHIN"
	// PredicateNear matches entities within a radius of the query geometry.
	PredicateNear SpatialPredicate = "NEAR"
	// PredicateIntersects matches entities whose footprint overlaps the query geometry.
	PredicateIntersects SpatialPredicate = "INTERSECTS"
)

// SpatialConstraint is the spatial clause of a structured query.
type SpatialConstraint struct {
	Geometry     Geometry         `json:"geometry"`
	Predicate    SpatialPredicate `json:"predicate"`
	RadiusMeters float64          `json:"radius_meters,omitempty"`
}
