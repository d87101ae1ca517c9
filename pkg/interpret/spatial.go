package interpret

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/soundprediction/cartograph/pkg/spatial"
	"github.com/soundprediction/cartograph/pkg/types"
)

var (
	// "19.07 n, 72.87 e", "19.07° N 72.87° E", "19.07, 72.87". Hemisphere
	// letters must end at a word boundary so the w of a following "within"
	// is not read as west.
	coordRe = regexp.MustCompile(`(\d+\.?\d*)\s*°?\s*([ns]?)\b[,\s]+(\d+\.?\d*)\s*°?\s*([ew]?)\b`)
	// "50 km around", "100 kilometers near", "5000 m within"
	radiusRe = regexp.MustCompile(`(\d+\.?\d*)\s*(km|kilometers?|m|meters?)\s*(?:around|near|within|from|of)`)
)

// parseSpatialConstraint extracts a spatial constraint from the normalized
// text. Explicit coordinates or a radius phrase always produce a NEAR
// constraint. A gazetteer place name produces WITHIN its bounding region
// when introduced by a containment word ("in", "within", "over"), NEAR its
// center point when introduced by "near" or "around", and no constraint at
// all when the place is mentioned with no spatial qualifier.
func parseSpatialConstraint(normalized string) *types.SpatialConstraint {
	radius, hasRadius := parseRadiusMeters(normalized)

	if pt, ok := parseCoordinates(normalized); ok {
		c := &types.SpatialConstraint{
			Geometry:  types.Geometry{Point: &pt},
			Predicate: types.PredicateNear,
		}
		if hasRadius {
			c.RadiusMeters = radius
		} else {
			c.RadiusMeters = spatial.DefaultNearRadiusMeters
		}
		return c
	}

	place, qualifier, found := findQualifiedPlace(normalized)
	if !found {
		return nil
	}
	switch qualifier {
	case "near", "around":
		c := &types.SpatialConstraint{
			Geometry:  place.PointGeometry(),
			Predicate: types.PredicateNear,
		}
		if hasRadius {
			c.RadiusMeters = radius
		} else {
			c.RadiusMeters = spatial.DefaultNearRadiusMeters
		}
		return c
	case "in", "within", "over", "inside":
		return &types.SpatialConstraint{
			Geometry:  place.Geometry(),
			Predicate: types.PredicateWithin,
		}
	default:
		if hasRadius {
			return &types.SpatialConstraint{
				Geometry:     place.PointGeometry(),
				Predicate:    types.PredicateNear,
				RadiusMeters: radius,
			}
		}
		return nil
	}
}

// parseCoordinates reads a "lat, lon" pair with optional hemisphere
// letters; south and west negate.
func parseCoordinates(text string) (types.Point, bool) {
	m := coordRe.FindStringSubmatch(text)
	if m == nil {
		return types.Point{}, false
	}
	lat, err1 := strconv.ParseFloat(m[1], 64)
	lon, err2 := strconv.ParseFloat(m[3], 64)
	if err1 != nil || err2 != nil {
		return types.Point{}, false
	}
	if m[2] == "s" {
		lat = -lat
	}
	if m[4] == "w" {
		lon = -lon
	}
	pt := types.Point{Lat: lat, Lon: lon}
	if !pt.Valid() {
		return types.Point{}, false
	}
	return pt, true
}

func parseRadiusMeters(text string) (float64, bool) {
	m := radiusRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if strings.HasPrefix(m[2], "k") {
		value *= 1000
	}
	return value, true
}

// findQualifiedPlace scans tokens for a gazetteer place and reports the
// spatial qualifier word, if any, immediately preceding it.
func findQualifiedPlace(normalized string) (spatial.Place, string, bool) {
	tokens := strings.Fields(normalized)
	for i, t := range tokens {
		place, ok := spatial.LookupPlace(t)
		if !ok {
			continue
		}
		qualifier := ""
		if i > 0 {
			switch tokens[i-1] {
			case "near", "around", "in", "within", "over", "inside":
				qualifier = tokens[i-1]
			}
		}
		return place, qualifier, true
	}
	return spatial.Place{}, "", false
}
