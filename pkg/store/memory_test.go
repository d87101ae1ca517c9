package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/cartograph/pkg/store"
	"github.com/soundprediction/cartograph/pkg/types"
)

func newTestStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()

	entities := []*types.Entity{
		{
			ID: "mumbai", Type: types.EntityRegion, Label: "Mumbai",
			Aliases:  []string{"Bombay"},
			Geometry: &types.Geometry{Point: &types.Point{Lat: 19.0760, Lon: 72.8777}},
		},
		{ID: "ds1", Type: types.EntityDataset, Label: "Ocean Color L3"},
		{ID: "sensor1", Type: types.EntitySensor, Label: "OCM-2"},
	}
	for _, e := range entities {
		require.NoError(t, s.PutEntity(ctx, e))
	}
	return s
}

func edge(src, dst string, rt types.RelationType, confidence float64, extractedAt time.Time) *types.Relationship {
	return &types.Relationship{
		SourceID:   src,
		TargetID:   dst,
		Type:       rt,
		Confidence: confidence,
		Provenance: types.Provenance{SourceID: "doc-1", ExtractedAt: extractedAt},
	}
}

func TestPutEntityImmutableType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.PutEntity(ctx, &types.Entity{ID: "mumbai", Type: types.EntityDataset, Label: "Mumbai"})
	assert.ErrorIs(t, err, types.ErrImmutableType)

	// Same type updates are fine and preserve identity.
	require.NoError(t, s.PutEntity(ctx, &types.Entity{
		ID: "mumbai", Type: types.EntityRegion, Label: "Greater Mumbai",
	}))
	got, err := s.GetEntity(ctx, "mumbai")
	require.NoError(t, err)
	assert.Equal(t, "Greater Mumbai", got.Label)
}

func TestGetEntityNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetEntity(context.Background(), "nope")
	assert.ErrorIs(t, err, types.ErrEntityNotFound)
}

func TestPutRelationshipEndpointMissing(t *testing.T) {
	s := newTestStore(t)
	err := s.PutRelationship(context.Background(),
		edge("ds1", "ghost", types.RelationLocatedIn, 0.9, time.Now()))
	assert.ErrorIs(t, err, types.ErrEndpointMissing)
}

func TestPutRelationshipIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rel := edge("ds1", "mumbai", types.RelationLocatedIn, 0.9, at)
	require.NoError(t, s.PutRelationship(ctx, rel))
	require.NoError(t, s.PutRelationship(ctx, rel))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Relationships)

	degree, err := s.Degree(ctx, "ds1")
	require.NoError(t, err)
	assert.Equal(t, 1, degree)
}

func TestPutRelationshipReconciliation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutRelationship(ctx, edge("ds1", "mumbai", types.RelationLocatedIn, 0.8, jan)))

	// Lower confidence with equal provenance loses.
	require.NoError(t, s.PutRelationship(ctx, edge("ds1", "mumbai", types.RelationLocatedIn, 0.5, jan)))
	neighbors, err := s.Neighbors(ctx, "ds1", nil)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, 0.8, neighbors[0].Edge.Confidence)

	// Lower confidence with strictly newer provenance wins.
	require.NoError(t, s.PutRelationship(ctx, edge("ds1", "mumbai", types.RelationLocatedIn, 0.5, feb)))
	neighbors, err = s.Neighbors(ctx, "ds1", nil)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, 0.5, neighbors[0].Edge.Confidence)

	// Higher confidence always wins.
	require.NoError(t, s.PutRelationship(ctx, edge("ds1", "mumbai", types.RelationLocatedIn, 0.9, jan)))
	neighbors, err = s.Neighbors(ctx, "ds1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.9, neighbors[0].Edge.Confidence)
}

func TestNeighborsBothDirections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Now()

	require.NoError(t, s.PutRelationship(ctx, edge("ds1", "mumbai", types.RelationLocatedIn, 0.9, at)))
	require.NoError(t, s.PutRelationship(ctx, edge("sensor1", "ds1", types.RelationSourceOf, 0.7, at)))

	neighbors, err := s.Neighbors(ctx, "ds1", nil)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)

	// Outgoing edge keeps its stored type.
	assert.Equal(t, "mumbai", neighbors[0].Entity.ID)
	assert.Equal(t, types.RelationLocatedIn, neighbors[0].Traversed)

	// Incoming edge is reported under its inverse type.
	assert.Equal(t, "sensor1", neighbors[1].Entity.ID)
	assert.Equal(t, types.RelationDerivedFrom, neighbors[1].Traversed)
}

func TestNeighborsHintFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Now()

	require.NoError(t, s.PutRelationship(ctx, edge("ds1", "mumbai", types.RelationLocatedIn, 0.9, at)))
	require.NoError(t, s.PutRelationship(ctx, edge("ds1", "sensor1", types.RelationReferences, 0.6, at)))

	neighbors, err := s.Neighbors(ctx, "ds1", []types.RelationType{types.RelationLocatedIn})
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "mumbai", neighbors[0].Entity.ID)

	_, err = s.Neighbors(ctx, "ds1", []types.RelationType{"BOGUS"})
	assert.ErrorIs(t, err, types.ErrUnknownRelation)
}

func TestFindByAlias(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Case-insensitive exact match on an alias.
	got, err := s.FindByAlias(ctx, "BOMBAY")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "mumbai", got[0].ID)

	// Substring match on a label.
	got, err = s.FindByAlias(ctx, "ocean")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ds1", got[0].ID)

	got, err = s.FindByAlias(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSpatialQueryNearestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutEntity(ctx, &types.Entity{
		ID: "pune", Type: types.EntityRegion, Label: "Pune",
		Geometry: &types.Geometry{Point: &types.Point{Lat: 18.5204, Lon: 73.8567}},
	}))

	matches, err := s.SpatialQuery(ctx, &types.SpatialConstraint{
		Geometry:     types.Geometry{Point: &types.Point{Lat: 19.0760, Lon: 72.8777}},
		Predicate:    types.PredicateNear,
		RadiusMeters: 200000,
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "mumbai", matches[0].Entity.ID)
	assert.Equal(t, "pune", matches[1].Entity.ID)
	assert.Less(t, matches[0].DistanceMeters, matches[1].DistanceMeters)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutRelationship(ctx,
		edge("ds1", "mumbai", types.RelationLocatedIn, 0.9, time.Now())))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Entities)
	assert.Equal(t, 1, stats.Relationships)
	assert.Equal(t, 1, stats.EntitiesByType[types.EntityRegion])
	assert.Equal(t, 1, stats.RelationsByType[types.RelationLocatedIn])
}

func TestConcurrentUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			confidence := 0.5 + float64(n%5)*0.1
			_ = s.PutRelationship(ctx, edge("ds1", "mumbai", types.RelationLocatedIn, confidence, at))
		}(i)
	}
	wg.Wait()

	// All writers targeted the same key; exactly one edge survives and the
	// highest confidence won.
	neighbors, err := s.Neighbors(ctx, "ds1", nil)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, 0.9, neighbors[0].Edge.Confidence)
}
