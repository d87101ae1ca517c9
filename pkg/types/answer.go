package types

// Path is a connected walk from a seed entity to a result entity:
// Entities[i] -(Edges[i])-> Entities[i+1]. Directions holds the relation
// type as traversed, which is the inverse of the stored type when the edge
// was walked against its direction.
type Path struct {
	Entities   []*Entity       `json:"entities"`
	Edges      []*Relationship `json:"edges"`
	Directions []RelationType  `json:"directions"`
}

// Seed returns the entity the walk started from.
func (p *Path) Seed() *Entity {
	if len(p.Entities) == 0 {
		return nil
	}
	return p.Entities[0]
}

// Terminal returns the entity the walk ends at.
func (p *Path) Terminal() *Entity {
	if len(p.Entities) == 0 {
		return nil
	}
	return p.Entities[len(p.Entities)-1]
}

// Hops returns the number of relationship steps in the walk.
func (p *Path) Hops() int { return len(p.Edges) }

// MeanEdgeConfidence returns the average confidence along the path, or 1.0
// for a zero-hop path.
func (p *Path) MeanEdgeConfidence() float64 {
	if len(p.Edges) == 0 {
		return 1.0
	}
	var sum float64
	for _, e := range p.Edges {
		sum += e.Confidence
	}
	return sum / float64(len(p.Edges))
}

// AnswerCandidate is one ranked result of retrieval.
type AnswerCandidate struct {
	Path        Path     `json:"path"`
	Score       float64  `json:"score"`
	Explanation []string `json:"explanation"`
}

// EntitySummary is the serializable projection of an entity in a payload.
type EntitySummary struct {
	ID         string                 `json:"id"`
	Type       EntityType             `json:"type"`
	Label      string                 `json:"label"`
	Geometry   *Geometry              `json:"geometry,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// PathSegment is one relationship step of an assembled answer path.
type PathSegment struct {
	FromID     string       `json:"from_id"`
	Relation   RelationType `json:"relation"`
	ToID       string       `json:"to_id"`
	Confidence float64      `json:"confidence"`
	SourceID   string       `json:"source_id,omitempty"`
}

// AnswerResult is one assembled candidate: the terminal entity plus the
// supporting relationship path and scoring explanation.
type AnswerResult struct {
	Entity      EntitySummary `json:"entity"`
	Score       float64       `json:"score"`
	Hops        int           `json:"hops"`
	Path        []PathSegment `json:"path"`
	Explanation []string      `json:"explanation"`
}

// SourceRef is a provenance summary attached to the payload.
type SourceRef struct {
	SourceID     string `json:"source_id"`
	ExtractionID string `json:"extraction_id,omitempty"`
}

// AnswerPayload is the structured answer returned to the caller. Prose
// generation over it is an external concern. Partial is true whenever the
// result is known to be incomplete: seed cap hit, deadline fired, no seeds,
// or a clarification is needed.
type AnswerPayload struct {
	Interpreted StructuredQuery `json:"interpreted"`
	Results     []AnswerResult  `json:"results"`
	Partial     bool            `json:"partial"`
	Sources     []SourceRef     `json:"sources,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
	Explanation string          `json:"explanation,omitempty"`
}
