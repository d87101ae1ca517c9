package spatial

import (
	"strings"

	"github.com/soundprediction/cartograph/pkg/types"
)

// Place is a built-in gazetteer entry: a named location with a point and a
// bounding box. The gazetteer resolves place names that appear in queries
// before the graph holds a matching Region entity.
type Place struct {
	Name  string
	Point types.Point
	BBox  [4]float64 // minLon, minLat, maxLon, maxLat
}

// Geometry returns the place footprint as a polygon ring over its bbox.
func (p Place) Geometry() types.Geometry {
	return types.Geometry{Ring: []types.Point{
		{Lat: p.BBox[1], Lon: p.BBox[0]},
		{Lat: p.BBox[1], Lon: p.BBox[2]},
		{Lat: p.BBox[3], Lon: p.BBox[2]},
		{Lat: p.BBox[3], Lon: p.BBox[0]},
	}}
}

// PointGeometry returns the place as a point geometry.
func (p Place) PointGeometry() types.Geometry {
	pt := p.Point
	return types.Geometry{Point: &pt}
}

var gazetteer = map[string]Place{
	"mumbai": {
		Name:  "Mumbai",
		Point: types.Point{Lat: 19.0760, Lon: 72.8777},
		BBox:  [4]float64{72.7749, 18.8876, 72.9944, 19.1808},
	},
	"delhi": {
		Name:  "Delhi",
		Point: types.Point{Lat: 28.7041, Lon: 77.2090},
		BBox:  [4]float64{76.8389, 28.4189, 77.3487, 28.8835},
	},
	"bangalore": {
		Name:  "Bangalore",
		Point: types.Point{Lat: 12.9716, Lon: 77.5946},
		BBox:  [4]float64{77.4661, 12.8342, 77.6413, 13.0841},
	},
	"chennai": {
		Name:  "Chennai",
		Point: types.Point{Lat: 13.0827, Lon: 80.2707},
		BBox:  [4]float64{80.0889, 12.9198, 80.2707, 13.2334},
	},
	"kolkata": {
		Name:  "Kolkata",
		Point: types.Point{Lat: 22.5726, Lon: 88.3639},
		BBox:  [4]float64{88.2234, 22.4396, 88.4504, 22.6343},
	},
}

// LookupPlace resolves a place name against the built-in gazetteer.
func LookupPlace(name string) (Place, bool) {
	p, ok := gazetteer[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// PlaceNames returns the gazetteer names, for mention scanning.
func PlaceNames() []string {
	names := make([]string, 0, len(gazetteer))
	for k := range gazetteer {
		names = append(names, k)
	}
	return names
}
