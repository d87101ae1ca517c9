package types_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/cartograph/pkg/types"
)

func validRelationship() *types.Relationship {
	return &types.Relationship{
		SourceID:   "ds1",
		TargetID:   "mumbai",
		Type:       types.RelationLocatedIn,
		Confidence: 0.9,
		Provenance: types.Provenance{
			SourceID:    "doc-42",
			ExtractedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestRelationshipValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*types.Relationship)
		wantErr error
	}{
		{
			name:   "valid",
			mutate: func(r *types.Relationship) {},
		},
		{
			name:    "empty source",
			mutate:  func(r *types.Relationship) { r.SourceID = "" },
			wantErr: types.ErrEmptyEndpoint,
		},
		{
			name:    "empty target",
			mutate:  func(r *types.Relationship) { r.TargetID = "" },
			wantErr: types.ErrEmptyEndpoint,
		},
		{
			name:    "unknown relation type",
			mutate:  func(r *types.Relationship) { r.Type = "FRIENDS_WITH" },
			wantErr: types.ErrUnknownRelation,
		},
		{
			name:    "confidence above one",
			mutate:  func(r *types.Relationship) { r.Confidence = 1.5 },
			wantErr: types.ErrConfidenceRange,
		},
		{
			name:    "negative confidence",
			mutate:  func(r *types.Relationship) { r.Confidence = -0.1 },
			wantErr: types.ErrConfidenceRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel := validRelationship()
			tt.mutate(rel)
			err := rel.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRelationshipKey(t *testing.T) {
	rel := validRelationship()
	assert.Equal(t, "ds1|LOCATED_IN|mumbai", rel.Key())

	// Same endpoints, different type, different key.
	other := validRelationship()
	other.Type = types.RelationReferences
	assert.NotEqual(t, rel.Key(), other.Key())
}

func TestInverseRelation(t *testing.T) {
	inv, ok := types.InverseRelation(types.RelationLocatedIn)
	require.True(t, ok)
	assert.Equal(t, types.RelationContains, inv)

	// Inverse is symmetric.
	back, ok := types.InverseRelation(inv)
	require.True(t, ok)
	assert.Equal(t, types.RelationLocatedIn, back)

	// REFERENCES is its own inverse.
	self, ok := types.InverseRelation(types.RelationReferences)
	require.True(t, ok)
	assert.Equal(t, types.RelationReferences, self)

	_, ok = types.InverseRelation("NOT_A_RELATION")
	assert.False(t, ok)
}

func TestProvenanceNewer(t *testing.T) {
	older := types.Provenance{ExtractedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := types.Provenance{ExtractedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}

	assert.True(t, newer.Newer(older))
	assert.False(t, older.Newer(newer))
	// Equal timestamps are not strictly newer.
	assert.False(t, older.Newer(older))
}

func TestEntityValidate(t *testing.T) {
	entity := &types.Entity{ID: "mumbai", Type: types.EntityRegion, Label: "Mumbai"}
	require.NoError(t, entity.Validate())

	missing := &types.Entity{Type: types.EntityRegion, Label: "Mumbai"}
	assert.ErrorIs(t, missing.Validate(), types.ErrEmptyID)

	unlabeled := &types.Entity{ID: "mumbai", Type: types.EntityRegion}
	assert.ErrorIs(t, unlabeled.Validate(), types.ErrEmptyLabel)

	unknown := &types.Entity{ID: "x", Type: "Spaceship", Label: "X"}
	assert.ErrorIs(t, unknown.Validate(), types.ErrUnknownType)

	badGeom := &types.Entity{
		ID: "x", Type: types.EntityRegion, Label: "X",
		Geometry: &types.Geometry{Point: &types.Point{Lat: 99, Lon: 0}},
	}
	assert.ErrorIs(t, badGeom.Validate(), types.ErrInvalidGeometry)
}

func TestStructuredQuerySeedIDs(t *testing.T) {
	query := &types.StructuredQuery{
		Mentions: []types.EntityMention{
			{Span: "mumbai", ResolvedIDs: []string{"mumbai"}, Confidence: 0.7},
			{Span: "bombay", ResolvedIDs: []string{"mumbai", "ds1"}, Confidence: 0.9},
		},
	}
	seeds := query.SeedIDs()
	require.Len(t, seeds, 2)
	// Higher confidence wins for a shared id.
	assert.Equal(t, 0.9, seeds["mumbai"])
	assert.Equal(t, 0.9, seeds["ds1"])
}

func TestPathHelpers(t *testing.T) {
	a := &types.Entity{ID: "a", Type: types.EntityRegion, Label: "A"}
	b := &types.Entity{ID: "b", Type: types.EntityDataset, Label: "B"}
	edge := validRelationship()
	edge.Confidence = 0.8

	zero := &types.Path{Entities: []*types.Entity{a}}
	assert.Equal(t, 0, zero.Hops())
	assert.Equal(t, "a", zero.Terminal().ID)
	assert.Equal(t, 1.0, zero.MeanEdgeConfidence())

	one := &types.Path{
		Entities:   []*types.Entity{a, b},
		Edges:      []*types.Relationship{edge},
		Directions: []types.RelationType{types.RelationContains},
	}
	assert.Equal(t, 1, one.Hops())
	assert.Equal(t, "a", one.Seed().ID)
	assert.Equal(t, "b", one.Terminal().ID)
	assert.Equal(t, 0.8, one.MeanEdgeConfidence())
}
