package assemble_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/cartograph/pkg/assemble"
	"github.com/soundprediction/cartograph/pkg/types"
)

func candidate(score float64, ids []string, sources ...string) types.AnswerCandidate {
	entities := make([]*types.Entity, len(ids))
	for i, id := range ids {
		entities[i] = &types.Entity{ID: id, Type: types.EntityDataset, Label: id}
	}
	var edges []*types.Relationship
	var directions []types.RelationType
	for i := 0; i+1 < len(ids); i++ {
		src := ""
		if i < len(sources) {
			src = sources[i]
		}
		edges = append(edges, &types.Relationship{
			SourceID: ids[i], TargetID: ids[i+1], Type: types.RelationReferences,
			Confidence: 0.9, Provenance: types.Provenance{SourceID: src, ExtractionID: "x1"},
		})
		directions = append(directions, types.RelationReferences)
	}
	return types.AnswerCandidate{
		Path:  types.Path{Entities: entities, Edges: edges, Directions: directions},
		Score: score,
	}
}

func TestAssemblePreservesOrder(t *testing.T) {
	query := &types.StructuredQuery{Intent: types.IntentLookup}
	candidates := []types.AnswerCandidate{
		candidate(0.9, []string{"a", "b"}, "doc-1"),
		candidate(0.7, []string{"a", "c"}, "doc-2"),
	}

	payload := assemble.Assemble(candidates, query, false)

	require.Len(t, payload.Results, 2)
	assert.Equal(t, "b", payload.Results[0].Entity.ID)
	assert.Equal(t, "c", payload.Results[1].Entity.ID)
	assert.False(t, payload.Partial)
	assert.Empty(t, payload.Suggestions)
}

func TestAssemblePathSegments(t *testing.T) {
	query := &types.StructuredQuery{Intent: types.IntentLookup}
	payload := assemble.Assemble([]types.AnswerCandidate{
		candidate(0.8, []string{"a", "b", "c"}, "doc-1", "doc-2"),
	}, query, false)

	require.Len(t, payload.Results, 1)
	result := payload.Results[0]
	assert.Equal(t, 2, result.Hops)
	require.Len(t, result.Path, 2)
	assert.Equal(t, "a", result.Path[0].FromID)
	assert.Equal(t, "b", result.Path[0].ToID)
	assert.Equal(t, types.RelationReferences, result.Path[0].Relation)
	assert.Equal(t, "doc-1", result.Path[0].SourceID)
	assert.Equal(t, "doc-2", result.Path[1].SourceID)
}

func TestAssembleSourcesDedupedAndSorted(t *testing.T) {
	query := &types.StructuredQuery{Intent: types.IntentLookup}
	candidates := []types.AnswerCandidate{
		candidate(0.9, []string{"a", "b"}, "doc-2"),
		candidate(0.8, []string{"a", "c"}, "doc-1"),
		candidate(0.7, []string{"b", "c"}, "doc-2"),
	}

	payload := assemble.Assemble(candidates, query, false)

	require.Len(t, payload.Sources, 2)
	assert.Equal(t, "doc-1", payload.Sources[0].SourceID)
	assert.Equal(t, "doc-2", payload.Sources[1].SourceID)
}

func TestAssembleSkipsEmptyProvenance(t *testing.T) {
	query := &types.StructuredQuery{Intent: types.IntentLookup}
	payload := assemble.Assemble([]types.AnswerCandidate{
		candidate(0.9, []string{"a", "b"}, ""),
	}, query, false)

	assert.Empty(t, payload.Sources)
}

func TestAssembleEmptyResultsAttachesSuggestions(t *testing.T) {
	query := &types.StructuredQuery{Intent: types.IntentLookup}
	payload := assemble.Assemble(nil, query, true)

	assert.Empty(t, payload.Results)
	assert.True(t, payload.Partial)
	assert.NotEmpty(t, payload.Suggestions)
}

func TestAssembleUnknownIntentAttachesSuggestions(t *testing.T) {
	query := &types.StructuredQuery{
		Intent:      types.IntentUnknown,
		Explanation: "could not determine what the question is asking; please rephrase",
	}
	payload := assemble.Assemble([]types.AnswerCandidate{
		candidate(0.9, []string{"a", "b"}, "doc-1"),
	}, query, false)

	assert.NotEmpty(t, payload.Suggestions)
	assert.Equal(t, query.Explanation, payload.Explanation)
}

func TestAssembleCompareNeedsTwoEntities(t *testing.T) {
	query := &types.StructuredQuery{Intent: types.IntentCompare}

	payload := assemble.Assemble([]types.AnswerCandidate{
		candidate(0.9, []string{"a", "b"}, "doc-1"),
	}, query, false)
	assert.True(t, payload.Partial)
	assert.Contains(t, payload.Explanation, "comparison")

	payload = assemble.Assemble([]types.AnswerCandidate{
		candidate(0.9, []string{"a", "b"}, "doc-1"),
		candidate(0.8, []string{"a", "c"}, "doc-1"),
	}, query, false)
	assert.False(t, payload.Partial)
	assert.Empty(t, payload.Explanation)
}

func TestClarification(t *testing.T) {
	query := &types.StructuredQuery{
		Intent:      types.IntentUnknown,
		Explanation: "could not determine what the question is asking; please rephrase",
	}
	payload := assemble.Clarification(query)

	assert.Empty(t, payload.Results)
	assert.True(t, payload.Partial)
	assert.Equal(t, query.Explanation, payload.Explanation)
	assert.NotEmpty(t, payload.Suggestions)
	assert.Equal(t, types.IntentUnknown, payload.Interpreted.Intent)
}
