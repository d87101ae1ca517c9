package retrieve

import (
	"fmt"

	"github.com/soundprediction/cartograph/pkg/spatial"
	"github.com/soundprediction/cartograph/pkg/types"
)

// Weights distributes the four scoring terms. They should sum to 1 but are
// not required to; relative magnitude is what matters for ranking.
type Weights struct {
	Mention  float64 `json:"mention" mapstructure:"mention"`
	HopDecay float64 `json:"hop_decay" mapstructure:"hop_decay"`
	Edge     float64 `json:"edge" mapstructure:"edge"`
	Spatial  float64 `json:"spatial" mapstructure:"spatial"`
}

// DefaultWeights weights all four terms equally.
func DefaultWeights() Weights {
	return Weights{Mention: 0.25, HopDecay: 0.25, Edge: 0.25, Spatial: 0.25}
}

// scorePath computes the ranking score for a path found during traversal.
// mentionConfidence is the confidence of the seed's mention. The spatial
// term is zero without a constraint, else a bonus in [0,1] decreasing with
// the terminal's distance to the constraint geometry.
func (r *Retriever) scorePath(path *types.Path, mentionConfidence float64, constraint *types.SpatialConstraint) (float64, []string) {
	w := r.config.Weights

	hopDecay := 1.0
	if path.Hops() > 0 {
		hopDecay = 1.0 / float64(path.Hops())
	}
	edgeConfidence := path.MeanEdgeConfidence()
	bonus := spatialBonus(path.Terminal(), constraint)

	score := w.Mention*mentionConfidence + w.HopDecay*hopDecay + w.Edge*edgeConfidence + w.Spatial*bonus

	explanation := []string{
		fmt.Sprintf("reached from %s in %d hops (mention confidence %.2f, mean edge confidence %.2f)",
			path.Seed().ID, path.Hops(), mentionConfidence, edgeConfidence),
	}
	if constraint != nil && bonus > 0 {
		explanation = append(explanation, fmt.Sprintf("spatial proximity bonus %.2f", bonus))
	}
	return score, explanation
}

// spatialBonus maps the terminal's distance to the constraint geometry onto
// [0,1], 1 at zero distance and falling off with the constraint's radius as
// the length scale. Entities without geometry get no bonus.
func spatialBonus(terminal *types.Entity, constraint *types.SpatialConstraint) float64 {
	if constraint == nil || terminal == nil || terminal.Geometry == nil {
		return 0
	}
	dist := spatial.DistanceToGeometry(terminal.Geometry.Center(), &constraint.Geometry)
	scale := constraint.RadiusMeters
	if scale <= 0 {
		scale = spatial.DefaultNearRadiusMeters
	}
	return 1.0 / (1.0 + dist/scale)
}
