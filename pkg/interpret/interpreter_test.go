package interpret_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/cartograph/pkg/index"
	"github.com/soundprediction/cartograph/pkg/interpret"
	"github.com/soundprediction/cartograph/pkg/store"
	"github.com/soundprediction/cartograph/pkg/types"
)

type stubClassifier struct {
	intent     types.Intent
	confidence float64
	err        error
}

func (s stubClassifier) Classify(context.Context, string) (types.Intent, float64, error) {
	return s.intent, s.confidence, s.err
}

func newInterpreter(t *testing.T, classifier interpret.Classifier) *interpret.Interpreter {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()

	entities := []*types.Entity{
		{
			ID: "mumbai", Type: types.EntityRegion, Label: "Mumbai",
			Geometry: &types.Geometry{Point: &types.Point{Lat: 19.0760, Lon: 72.8777}},
		},
		{ID: "insat-3d", Type: types.EntitySatellite, Label: "INSAT-3D"},
		{ID: "sst", Type: types.EntityParameter, Label: "Sea Surface Temperature", Aliases: []string{"SST"}},
	}
	for _, e := range entities {
		require.NoError(t, s.PutEntity(ctx, e))
	}

	ix := index.New(s, s, nil)
	return interpret.New(ix, classifier, interpret.Config{}, nil)
}

func TestInterpretEmptyQuery(t *testing.T) {
	it := newInterpreter(t, nil)
	for _, raw := range []string{"", "   ", "?!."} {
		_, err := it.Interpret(context.Background(), raw, nil)
		assert.ErrorIs(t, err, types.ErrEmptyQuery, "input %q", raw)
	}
}

func TestInterpretLookupWithResultTypeFilter(t *testing.T) {
	it := newInterpreter(t, nil)

	query, err := it.Interpret(context.Background(), "What datasets are available for Mumbai?", nil)
	require.NoError(t, err)

	assert.Equal(t, types.IntentLookup, query.Intent)
	assert.Greater(t, query.IntentConfidence, 0.0)
	assert.Equal(t, types.EntityDataset, query.ResultTypeFilter)

	require.Len(t, query.Mentions, 1)
	assert.Equal(t, "mumbai", query.Mentions[0].Span)
	assert.Equal(t, []string{"mumbai"}, query.Mentions[0].ResolvedIDs)
	assert.Equal(t, 1.0, query.Mentions[0].Confidence)

	// A plain place mention carries no spatial constraint.
	assert.Nil(t, query.Spatial)
}

func TestInterpretIntents(t *testing.T) {
	it := newInterpreter(t, nil)
	ctx := context.Background()

	tests := []struct {
		raw  string
		want types.Intent
	}{
		{"list all satellites", types.IntentList},
		{"compare INSAT-3D versus INSAT-3DR", types.IntentCompare},
		{"what is sea surface temperature", types.IntentLookup},
		{"stations near mumbai", types.IntentSpatialLookup},
	}
	for _, tt := range tests {
		query, err := it.Interpret(ctx, tt.raw, nil)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, query.Intent, tt.raw)
	}
}

func TestInterpretSpatialConstraints(t *testing.T) {
	it := newInterpreter(t, nil)
	ctx := context.Background()

	// "near <place>" yields a NEAR constraint at the default radius.
	query, err := it.Interpret(ctx, "ground stations near mumbai", nil)
	require.NoError(t, err)
	require.NotNil(t, query.Spatial)
	assert.Equal(t, types.PredicateNear, query.Spatial.Predicate)
	require.NotNil(t, query.Spatial.Geometry.Point)
	assert.InDelta(t, 19.0760, query.Spatial.Geometry.Point.Lat, 0.01)

	// "in <place>" yields a WITHIN constraint over the place's bbox.
	query, err = it.Interpret(ctx, "datasets covering stations in mumbai", nil)
	require.NoError(t, err)
	require.NotNil(t, query.Spatial)
	assert.Equal(t, types.PredicateWithin, query.Spatial.Predicate)
	assert.True(t, query.Spatial.Geometry.IsPolygon())

	// "within N km of <place>" resolves the place and keeps the radius.
	query, err = it.Interpret(ctx, "datasets within 50 km of mumbai", nil)
	require.NoError(t, err)
	require.NotNil(t, query.Spatial)
	assert.Equal(t, types.PredicateNear, query.Spatial.Predicate)
	assert.Equal(t, float64(50000), query.Spatial.RadiusMeters)

	// Hemisphere-qualified coordinates.
	query, err = it.Interpret(ctx, "images around 19.07 n 72.87 e", nil)
	require.NoError(t, err)
	require.NotNil(t, query.Spatial)
	require.NotNil(t, query.Spatial.Geometry.Point)
	assert.InDelta(t, 19.07, query.Spatial.Geometry.Point.Lat, 0.001)
	assert.InDelta(t, 72.87, query.Spatial.Geometry.Point.Lon, 0.001)

	// Explicit coordinates with a radius.
	query, err = it.Interpret(ctx, "what is near 19.07, 72.88 within 100 km of here", nil)
	require.NoError(t, err)
	require.NotNil(t, query.Spatial)
	assert.Equal(t, types.PredicateNear, query.Spatial.Predicate)
	assert.Equal(t, float64(100000), query.Spatial.RadiusMeters)
	require.NotNil(t, query.Spatial.Geometry.Point)
	assert.InDelta(t, 19.07, query.Spatial.Geometry.Point.Lat, 0.001)
	assert.InDelta(t, 72.88, query.Spatial.Geometry.Point.Lon, 0.001)
}

func TestInterpretMultiTokenMention(t *testing.T) {
	it := newInterpreter(t, nil)

	query, err := it.Interpret(context.Background(), "tell me about sea surface temperature", nil)
	require.NoError(t, err)

	require.Len(t, query.Mentions, 1)
	assert.Equal(t, "sea surface temperature", query.Mentions[0].Span)
	assert.Equal(t, []string{"sst"}, query.Mentions[0].ResolvedIDs)
}

func TestInterpretPronounCarryOver(t *testing.T) {
	it := newInterpreter(t, nil)
	ctx := context.Background()

	first, err := it.Interpret(ctx, "what is INSAT-3D", nil)
	require.NoError(t, err)
	require.Len(t, first.Mentions, 1)

	followUp, err := it.Interpret(ctx, "what sensors does it carry", []types.StructuredQuery{first})
	require.NoError(t, err)
	assert.Equal(t, first.Mentions, followUp.Mentions)
	assert.Equal(t, "interpreted in context of previous question", followUp.Explanation)

	// Carry-over reaches one turn back only.
	blank, err := it.Interpret(ctx, "list all satellites", nil)
	require.NoError(t, err)
	stale, err := it.Interpret(ctx, "what sensors does it carry", []types.StructuredQuery{first, blank})
	require.NoError(t, err)
	assert.Empty(t, stale.Mentions)
}

func TestInterpretUnknownIntent(t *testing.T) {
	it := newInterpreter(t, nil)

	query, err := it.Interpret(context.Background(), "asdf qwerty zxcv", nil)
	require.NoError(t, err)
	assert.Equal(t, types.IntentUnknown, query.Intent)
	assert.Equal(t, 0.0, query.IntentConfidence)
	assert.NotEmpty(t, query.Explanation)
}

func TestInterpretClassifierFallback(t *testing.T) {
	tests := []struct {
		name       string
		classifier interpret.Classifier
		want       types.Intent
	}{
		{
			name:       "confident classification accepted",
			classifier: stubClassifier{intent: types.IntentList, confidence: 0.8},
			want:       types.IntentList,
		},
		{
			name:       "below floor stays unknown",
			classifier: stubClassifier{intent: types.IntentList, confidence: 0.3},
			want:       types.IntentUnknown,
		},
		{
			name:       "classifier error stays unknown",
			classifier: stubClassifier{err: errors.New("backend down")},
			want:       types.IntentUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := newInterpreter(t, tt.classifier)
			query, err := it.Interpret(context.Background(), "asdf qwerty zxcv", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, query.Intent)
		})
	}
}
