package types

import (
	"fmt"
	"time"
)

// RelationType classifies a directed edge in the knowledge graph.
type RelationType string

const (
	RelationProvides    RelationType = "PROVIDES"
	RelationProvidedBy  RelationType = "PROVIDED_BY"
	RelationLocatedIn   RelationType = "LOCATED_IN"
	RelationContains    RelationType = "CONTAINS"
	RelationPartOf      RelationType = "PART_OF"
	RelationHasPart     RelationType = "HAS_PART"
	RelationMeasures    RelationType = "MEASURES"
	RelationMeasuredBy  RelationType = "MEASURED_BY"
	RelationDerivedFrom RelationType = "DERIVED_FROM"
	RelationSourceOf    RelationType = "SOURCE_OF"
	RelationReferences  RelationType = "REFERENCES"
)

// inverseRelations maps each relation type to its queryable inverse.
// Traversal follows edges in both directions and reports the inverse type
// when walking an edge against its stored direction.
var inverseRelations = map[RelationType]RelationType{
	RelationProvides:    RelationProvidedBy,
	RelationProvidedBy:  RelationProvides,
	RelationLocatedIn:   RelationContains,
	RelationContains:    RelationLocatedIn,
	RelationPartOf:      RelationHasPart,
	RelationHasPart:     RelationPartOf,
	RelationMeasures:    RelationMeasuredBy,
	RelationMeasuredBy:  RelationMeasures,
	RelationDerivedFrom: RelationSourceOf,
	RelationSourceOf:    RelationDerivedFrom,
	RelationReferences:  RelationReferences,
}

// KnownRelationType reports whether t is a recognized relation type.
func KnownRelationType(t RelationType) bool {
	_, ok := inverseRelations[t]
	return ok
}

// InverseRelation returns the queryable inverse of t, and whether t is known.
func InverseRelation(t RelationType) (RelationType, bool) {
	inv, ok := inverseRelations[t]
	return inv, ok
}

// Provenance references the document and extraction event an edge came from.
// Recency comparisons between competing edges use ExtractedAt.
type Provenance struct {
	SourceID     string    `json:"source_id" yaml:"source_id"`
	ExtractionID string    `json:"extraction_id,omitempty" yaml:"extraction_id,omitempty"`
	ExtractedAt  time.Time `json:"extracted_at" yaml:"extracted_at,omitempty"`
}

// Newer reports whether p is strictly more recent than other.
func (p Provenance) Newer(other Provenance) bool {
	return p.ExtractedAt.After(other.ExtractedAt)
}

// Relationship is a directed, typed edge between two entities. Edges are
// identified by (source, target, type); re-extraction upserts by that key
// with confidence reconciliation.
type Relationship struct {
	SourceID   string                 `json:"source_id" yaml:"source_id"`
	TargetID   string                 `json:"target_id" yaml:"target_id"`
	Type       RelationType           `json:"relation_type" yaml:"relation_type"`
	Attributes map[string]interface{} `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Provenance Provenance             `json:"provenance" yaml:"provenance,omitempty"`
	Confidence float64                `json:"confidence" yaml:"confidence"`
	CreatedAt  time.Time              `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at" yaml:"updated_at,omitempty"`
}

// Key returns the identity of the edge: source, type and target.
func (r *Relationship) Key() string {
	return fmt.Sprintf("%s|%s|%s", r.SourceID, r.Type, r.TargetID)
}

// Validate checks the fields required for an upsert. Endpoint existence is
// checked by the store at commit time.
func (r *Relationship) Validate() error {
	if r.SourceID == "" || r.TargetID == "" {
		return ErrEmptyEndpoint
	}
	if !KnownRelationType(r.Type) {
		return ErrUnknownRelation
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return ErrConfidenceRange
	}
	return nil
}

// Equal reports whether two edges are identical in identity, confidence and
// provenance. Re-upserting an equal edge is a no-op.
func (r *Relationship) Equal(other *Relationship) bool {
	return r.Key() == other.Key() &&
		r.Confidence == other.Confidence &&
		r.Provenance == other.Provenance
}
