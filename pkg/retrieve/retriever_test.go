package retrieve_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/cartograph/pkg/retrieve"
	"github.com/soundprediction/cartograph/pkg/store"
	"github.com/soundprediction/cartograph/pkg/types"
)

// buildGraph wires a small satellite graph:
//
//	insat-3d --SOURCE_OF--> ds1 --LOCATED_IN--> mumbai
//	insat-3d --CARRIES--> imager
//	mumbai, pune, delhi carry point geometry for spatial queries.
func buildGraph(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()

	entities := []*types.Entity{
		{ID: "insat-3d", Type: types.EntitySatellite, Label: "INSAT-3D"},
		{ID: "imager", Type: types.EntitySensor, Label: "Imager"},
		{ID: "ds1", Type: types.EntityDataset, Label: "Ocean Color L3"},
		{
			ID: "mumbai", Type: types.EntityRegion, Label: "Mumbai",
			Geometry: &types.Geometry{Point: &types.Point{Lat: 19.0760, Lon: 72.8777}},
		},
		{
			ID: "pune", Type: types.EntityRegion, Label: "Pune",
			Geometry: &types.Geometry{Point: &types.Point{Lat: 18.5204, Lon: 73.8567}},
		},
		{
			ID: "delhi", Type: types.EntityRegion, Label: "Delhi",
			Geometry: &types.Geometry{Point: &types.Point{Lat: 28.7041, Lon: 77.1025}},
		},
	}
	for _, e := range entities {
		require.NoError(t, s.PutEntity(ctx, e))
	}

	edges := []*types.Relationship{
		{SourceID: "insat-3d", TargetID: "ds1", Type: types.RelationSourceOf, Confidence: 0.9},
		{SourceID: "ds1", TargetID: "mumbai", Type: types.RelationLocatedIn, Confidence: 0.8},
		{SourceID: "insat-3d", TargetID: "imager", Type: types.RelationHasPart, Confidence: 0.95},
	}
	for _, rel := range edges {
		rel.Provenance = types.Provenance{SourceID: "doc-1"}
		require.NoError(t, s.PutRelationship(ctx, rel))
	}
	return s
}

func newRetriever(s *store.MemoryStore, config retrieve.Config) *retrieve.Retriever {
	return retrieve.New(s, s, s, config, nil)
}

func mentionQuery(id string, confidence float64) *types.StructuredQuery {
	return &types.StructuredQuery{
		Intent: types.IntentLookup,
		Mentions: []types.EntityMention{
			{Span: id, ResolvedIDs: []string{id}, Confidence: confidence},
		},
	}
}

func TestRetrieveInvalidInputs(t *testing.T) {
	r := newRetriever(buildGraph(t), retrieve.Config{})
	ctx := context.Background()

	_, err := r.Retrieve(ctx, mentionQuery("ds1", 1.0), 0)
	assert.ErrorIs(t, err, types.ErrInvalidLimit)

	bad := mentionQuery("ds1", 1.0)
	bad.RelationHints = []types.RelationType{"BOGUS"}
	_, err = r.Retrieve(ctx, bad, 5)
	assert.ErrorIs(t, err, types.ErrInvalidQuery)
}

func TestRetrieveNoSeedsIsPartialNotError(t *testing.T) {
	r := newRetriever(buildGraph(t), retrieve.Config{})

	result, err := r.Retrieve(context.Background(), &types.StructuredQuery{Intent: types.IntentLookup}, 5)
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.True(t, result.Partial)
}

func TestRetrieveStaleMentionYieldsNothing(t *testing.T) {
	r := newRetriever(buildGraph(t), retrieve.Config{})

	result, err := r.Retrieve(context.Background(), mentionQuery("deleted", 1.0), 5)
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
}

func TestRetrieveRankedAndDeterministic(t *testing.T) {
	r := newRetriever(buildGraph(t), retrieve.Config{})
	ctx := context.Background()
	query := mentionQuery("insat-3d", 1.0)

	first, err := r.Retrieve(ctx, query, 10)
	require.NoError(t, err)
	require.NotEmpty(t, first.Candidates)
	assert.False(t, first.Partial)

	// The zero-hop seed path outranks everything reached through edges.
	assert.Equal(t, "insat-3d", first.Candidates[0].Path.Terminal().ID)
	for i := 1; i < len(first.Candidates); i++ {
		assert.GreaterOrEqual(t, first.Candidates[i-1].Score, first.Candidates[i].Score)
	}

	second, err := r.Retrieve(ctx, query, 10)
	require.NoError(t, err)
	assert.Equal(t, first.Candidates, second.Candidates)
}

func TestRetrieveHopLimit(t *testing.T) {
	s := buildGraph(t)
	ctx := context.Background()

	// One hop from insat-3d reaches ds1 and imager but not mumbai.
	r := newRetriever(s, retrieve.Config{HopLimit: 1})
	result, err := r.Retrieve(ctx, mentionQuery("insat-3d", 1.0), 10)
	require.NoError(t, err)

	ids := terminalIDs(result.Candidates)
	assert.Contains(t, ids, "ds1")
	assert.Contains(t, ids, "imager")
	assert.NotContains(t, ids, "mumbai")
}

func TestRetrieveCycleVisitedOnce(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.PutEntity(ctx, &types.Entity{
			ID: id, Type: types.EntityDocument, Label: id,
		}))
	}
	for _, pair := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}} {
		require.NoError(t, s.PutRelationship(ctx, &types.Relationship{
			SourceID: pair[0], TargetID: pair[1], Type: types.RelationReferences,
			Confidence: 0.9, Provenance: types.Provenance{SourceID: "doc-1"},
		}))
	}

	r := newRetriever(s, retrieve.Config{HopLimit: 10})
	result, err := r.Retrieve(ctx, mentionQuery("a", 1.0), 10)
	require.NoError(t, err)
	assert.Len(t, result.Candidates, 3)
}

func TestRetrieveResultTypeFilter(t *testing.T) {
	r := newRetriever(buildGraph(t), retrieve.Config{})
	query := mentionQuery("insat-3d", 1.0)
	query.ResultTypeFilter = types.EntityDataset

	result, err := r.Retrieve(context.Background(), query, 10)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "ds1", result.Candidates[0].Path.Terminal().ID)
}

func TestRetrieveRelationHintFilter(t *testing.T) {
	r := newRetriever(buildGraph(t), retrieve.Config{})
	query := mentionQuery("insat-3d", 1.0)
	query.RelationHints = []types.RelationType{types.RelationHasPart}

	result, err := r.Retrieve(context.Background(), query, 10)
	require.NoError(t, err)

	ids := terminalIDs(result.Candidates)
	assert.Contains(t, ids, "imager")
	assert.NotContains(t, ids, "ds1")
}

func TestRetrieveSpatialSeeding(t *testing.T) {
	r := newRetriever(buildGraph(t), retrieve.Config{HopLimit: 1})

	// No mentions resolved; the constraint seeds the run instead.
	query := &types.StructuredQuery{
		Intent: types.IntentSpatialLookup,
		Spatial: &types.SpatialConstraint{
			Geometry:     types.Geometry{Point: &types.Point{Lat: 19.0760, Lon: 72.8777}},
			Predicate:    types.PredicateNear,
			RadiusMeters: 200000,
		},
	}
	result, err := r.Retrieve(context.Background(), query, 10)
	require.NoError(t, err)

	ids := terminalIDs(result.Candidates)
	assert.Contains(t, ids, "mumbai")
	assert.Contains(t, ids, "pune")
	assert.NotContains(t, ids, "delhi")
	// Seeding from mumbai walks back to ds1; no post-filter applies.
	assert.Contains(t, ids, "ds1")
}

func TestRetrieveSpatialPostFilter(t *testing.T) {
	r := newRetriever(buildGraph(t), retrieve.Config{})

	// Mention seeding plus a constraint: terminals must satisfy it, and
	// entities without geometry are discarded.
	query := mentionQuery("insat-3d", 1.0)
	query.Spatial = &types.SpatialConstraint{
		Geometry:     types.Geometry{Point: &types.Point{Lat: 19.0760, Lon: 72.8777}},
		Predicate:    types.PredicateNear,
		RadiusMeters: 50000,
	}
	result, err := r.Retrieve(context.Background(), query, 10)
	require.NoError(t, err)

	ids := terminalIDs(result.Candidates)
	assert.Equal(t, []string{"mumbai"}, ids)
}

func TestRetrieveSeedCapMarksPartial(t *testing.T) {
	r := newRetriever(buildGraph(t), retrieve.Config{SeedCap: 1, HopLimit: 1})
	query := &types.StructuredQuery{
		Intent: types.IntentLookup,
		Mentions: []types.EntityMention{
			{Span: "ds1", ResolvedIDs: []string{"ds1"}, Confidence: 0.9},
			{Span: "imager", ResolvedIDs: []string{"imager"}, Confidence: 0.7},
		},
	}

	result, err := r.Retrieve(context.Background(), query, 10)
	require.NoError(t, err)
	assert.True(t, result.Partial)

	// The cap keeps the most confident seed.
	ids := terminalIDs(result.Candidates)
	assert.Contains(t, ids, "ds1")
	assert.NotContains(t, ids, "imager")
}

func TestRetrieveDeadlineMarksPartial(t *testing.T) {
	r := newRetriever(buildGraph(t), retrieve.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := r.Retrieve(ctx, mentionQuery("insat-3d", 1.0), 10)
	require.NoError(t, err)
	assert.True(t, result.Partial)
	// The seed itself is still reported as a zero-hop candidate.
	require.NotEmpty(t, result.Candidates)
	assert.Equal(t, "insat-3d", result.Candidates[0].Path.Terminal().ID)
}

func TestRetrieveTruncatesToK(t *testing.T) {
	r := newRetriever(buildGraph(t), retrieve.Config{})

	result, err := r.Retrieve(context.Background(), mentionQuery("insat-3d", 1.0), 2)
	require.NoError(t, err)
	assert.Len(t, result.Candidates, 2)
}

func TestRetrieveDedupKeepsBestPath(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"seed1", "seed2", "shared"} {
		require.NoError(t, s.PutEntity(ctx, &types.Entity{
			ID: id, Type: types.EntityDocument, Label: id,
		}))
	}
	// shared is reachable from both seeds; one candidate survives with the
	// alternative route noted in its explanation.
	edges := []*types.Relationship{
		{SourceID: "seed1", TargetID: "shared", Type: types.RelationReferences, Confidence: 0.9},
		{SourceID: "seed2", TargetID: "shared", Type: types.RelationReferences, Confidence: 0.9},
	}
	for _, rel := range edges {
		rel.Provenance = types.Provenance{SourceID: "doc-1"}
		require.NoError(t, s.PutRelationship(ctx, rel))
	}

	query := &types.StructuredQuery{
		Intent: types.IntentLookup,
		Mentions: []types.EntityMention{
			{Span: "seed1", ResolvedIDs: []string{"seed1"}, Confidence: 1.0},
			{Span: "seed2", ResolvedIDs: []string{"seed2"}, Confidence: 0.5},
		},
	}
	r := newRetriever(s, retrieve.Config{})
	result, err := r.Retrieve(ctx, query, 10)
	require.NoError(t, err)

	var shared []types.AnswerCandidate
	for _, c := range result.Candidates {
		if c.Path.Terminal().ID == "shared" {
			shared = append(shared, c)
		}
	}
	require.Len(t, shared, 1)
	// The higher-confidence seed owns the surviving path.
	assert.Equal(t, "seed1", shared[0].Path.Seed().ID)
	assert.Contains(t, shared[0].Explanation, "also reachable from seed2 in 1 hops")
}

func terminalIDs(candidates []types.AnswerCandidate) []string {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.Path.Terminal().ID)
	}
	return ids
}
