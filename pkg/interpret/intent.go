package interpret

import (
	"github.com/soundprediction/cartograph/pkg/types"
)

// Keyword tables for rule-based intent classification. A token hit scores
// one point for its intent; the highest-scoring intent wins. A resolved
// spatial constraint adds extra weight to SPATIAL_LOOKUP so that "datasets
// near mumbai" is not misread as a plain list query.
var intentKeywords = map[types.Intent][]string{
	types.IntentLookup: {
		"what", "where", "when", "which", "how", "tell", "explain",
		"describe", "information", "details", "resolution", "coverage",
	},
	types.IntentList: {
		"list", "show", "all", "every", "enumerate", "catalog",
	},
	types.IntentCompare: {
		"compare", "versus", "vs", "difference", "differences", "between", "better",
	},
	types.IntentSpatialLookup: {
		"near", "around", "within", "region", "area", "location",
		"coordinates", "latitude", "longitude", "spatial", "covering",
	},
}

const spatialConstraintBonus = 2

// classifyRules scores the keyword tables over the tokens and returns the
// winning intent with a confidence in [0,1]. Zero total hits yields
// UNKNOWN with confidence 0.
func classifyRules(tokens []string, hasConstraint bool) (types.Intent, float64) {
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	scores := make(map[types.Intent]int, len(intentKeywords))
	for intent, keywords := range intentKeywords {
		for _, kw := range keywords {
			if tokenSet[kw] {
				scores[intent]++
			}
		}
	}
	if hasConstraint {
		scores[types.IntentSpatialLookup] += spatialConstraintBonus
	}

	best := types.IntentUnknown
	bestScore := 0
	for _, intent := range []types.Intent{
		types.IntentSpatialLookup,
		types.IntentCompare,
		types.IntentList,
		types.IntentLookup,
	} {
		if scores[intent] > bestScore {
			best = intent
			bestScore = scores[intent]
		}
	}
	if bestScore == 0 {
		return types.IntentUnknown, 0
	}

	confidence := 0.5 + 0.15*float64(bestScore)
	if confidence > 0.95 {
		confidence = 0.95
	}
	return best, confidence
}

// resultTypeNouns maps plural/singular nouns in the query to the entity
// type the caller wants back.
var resultTypeNouns = map[string]types.EntityType{
	"dataset":       types.EntityDataset,
	"datasets":      types.EntityDataset,
	"data":          types.EntityDataset,
	"product":       types.EntityDataset,
	"products":      types.EntityDataset,
	"imagery":       types.EntityDataset,
	"sensor":        types.EntitySensor,
	"sensors":       types.EntitySensor,
	"instrument":    types.EntitySensor,
	"instruments":   types.EntitySensor,
	"satellite":     types.EntitySatellite,
	"satellites":    types.EntitySatellite,
	"mission":       types.EntitySatellite,
	"missions":      types.EntitySatellite,
	"document":      types.EntityDocument,
	"documents":     types.EntityDocument,
	"documentation": types.EntityDocument,
	"parameter":     types.EntityParameter,
	"parameters":    types.EntityParameter,
	"region":        types.EntityRegion,
	"regions":       types.EntityRegion,
	"organization":  types.EntityOrganization,
	"organizations": types.EntityOrganization,
	"agency":        types.EntityOrganization,
}

// detectResultTypeFilter returns the entity type named by the query nouns,
// or empty when none (or more than one distinct type) is named.
func detectResultTypeFilter(tokens []string) types.EntityType {
	var found types.EntityType
	for _, t := range tokens {
		et, ok := resultTypeNouns[t]
		if !ok {
			continue
		}
		if found != "" && found != et {
			return ""
		}
		found = et
	}
	return found
}

// detectRelationHints maps explicit relation vocabulary in the query to
// relation types used to constrain traversal.
var relationVocabulary = map[string]types.RelationType{
	"located":  types.RelationLocatedIn,
	"contains": types.RelationContains,
	"measures": types.RelationMeasures,
	"measured": types.RelationMeasures,
	"provides": types.RelationProvides,
	"provided": types.RelationProvides,
	"derived":  types.RelationDerivedFrom,
	"part":     types.RelationPartOf,
}

func detectRelationHints(tokens []string) []types.RelationType {
	seen := make(map[types.RelationType]bool)
	var hints []types.RelationType
	for _, t := range tokens {
		rt, ok := relationVocabulary[t]
		if !ok || seen[rt] {
			continue
		}
		seen[rt] = true
		hints = append(hints, rt)
	}
	return hints
}
