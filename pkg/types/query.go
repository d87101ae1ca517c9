package types

// Intent classifies what kind of answer a query expects.
type Intent string

const (
	IntentLookup        Intent = "LOOKUP"
	IntentList          Intent = "LIST"
	IntentCompare       Intent = "COMPARE"
	IntentSpatialLookup Intent = "SPATIAL_LOOKUP"
	IntentUnknown       Intent = "UNKNOWN"
)

// EntityMention is a resolved span of the raw query text. ResolvedIDs are
// ordered best-first; Confidence is the similarity of the best match (1.0
// for exact lexical matches).
type EntityMention struct {
	Span        string   `json:"span"`
	ResolvedIDs []string `json:"resolved_entity_ids"`
	Confidence  float64  `json:"confidence"`
}

// StructuredQuery is the parsed, machine-actionable form of a free-text
// question. Instances are ephemeral and never shared across requests.
type StructuredQuery struct {
	RawText          string             `json:"raw_text"`
	Intent           Intent             `json:"intent"`
	IntentConfidence float64            `json:"intent_confidence"`
	Mentions         []EntityMention    `json:"entity_mentions,omitempty"`
	RelationHints    []RelationType     `json:"relation_hints,omitempty"`
	Spatial          *SpatialConstraint `json:"spatial_constraint,omitempty"`
	ResultTypeFilter EntityType         `json:"result_type_filter,omitempty"`
	// Explanation is set when interpretation degraded, e.g. ambiguous
	// intent or context carried over from a prior turn.
	Explanation string `json:"explanation,omitempty"`
}

// SeedIDs returns the union of resolved entity ids across mentions, mapped
// to the confidence of the mention that resolved them. When two mentions
// resolve the same id the higher confidence wins.
func (q *StructuredQuery) SeedIDs() map[string]float64 {
	seeds := make(map[string]float64)
	for _, m := range q.Mentions {
		for _, id := range m.ResolvedIDs {
			if c, ok := seeds[id]; !ok || m.Confidence > c {
				seeds[id] = m.Confidence
			}
		}
	}
	return seeds
}
