// Package assemble packages ranked answer candidates into the serializable
// payload returned to callers. Pure and synchronous: no I/O, no store
// access, candidate order is preserved.
package assemble

import (
	"sort"

	"github.com/soundprediction/cartograph/pkg/types"
)

// suggestions offered when a query produced nothing, so the caller can
// render a useful "not found" response.
var defaultSuggestions = []string{
	"What datasets are available for my region?",
	"Which sensors measure sea surface temperature?",
	"List datasets near Mumbai",
	"Compare INSAT-3D and INSAT-3DR",
	"What does the SCATSAT-1 mission provide?",
}

// Assemble builds the answer payload from retrieval output. partial is
// propagated as-is from the retriever; an empty candidate list or an
// UNKNOWN intent additionally attaches query suggestions.
func Assemble(candidates []types.AnswerCandidate, query *types.StructuredQuery, partial bool) *types.AnswerPayload {
	payload := &types.AnswerPayload{
		Interpreted: *query,
		Results:     make([]types.AnswerResult, 0, len(candidates)),
		Partial:     partial,
	}

	seenSources := make(map[types.SourceRef]bool)
	for _, c := range candidates {
		payload.Results = append(payload.Results, assembleResult(&c))
		for _, edge := range c.Path.Edges {
			if edge.Provenance.SourceID == "" {
				continue
			}
			ref := types.SourceRef{
				SourceID:     edge.Provenance.SourceID,
				ExtractionID: edge.Provenance.ExtractionID,
			}
			if !seenSources[ref] {
				seenSources[ref] = true
				payload.Sources = append(payload.Sources, ref)
			}
		}
	}
	sort.Slice(payload.Sources, func(i, j int) bool {
		if payload.Sources[i].SourceID != payload.Sources[j].SourceID {
			return payload.Sources[i].SourceID < payload.Sources[j].SourceID
		}
		return payload.Sources[i].ExtractionID < payload.Sources[j].ExtractionID
	})

	if query.Explanation != "" {
		payload.Explanation = query.Explanation
	}
	// A comparison needs at least two entities to compare.
	if query.Intent == types.IntentCompare && len(payload.Results) < 2 {
		payload.Partial = true
		if payload.Explanation == "" {
			payload.Explanation = "a comparison needs at least two matching entities; only found " +
				countWord(len(payload.Results))
		}
	}
	if len(payload.Results) == 0 || query.Intent == types.IntentUnknown {
		payload.Suggestions = defaultSuggestions
	}
	return payload
}

func countWord(n int) string {
	if n == 1 {
		return "one"
	}
	return "none"
}

// Clarification builds the payload for a query whose intent could not be
// determined: no results, partial, explanation and suggestions set.
func Clarification(query *types.StructuredQuery) *types.AnswerPayload {
	return &types.AnswerPayload{
		Interpreted: *query,
		Results:     []types.AnswerResult{},
		Partial:     true,
		Explanation: query.Explanation,
		Suggestions: defaultSuggestions,
	}
}

func assembleResult(c *types.AnswerCandidate) types.AnswerResult {
	terminal := c.Path.Terminal()
	result := types.AnswerResult{
		Entity:      summarize(terminal),
		Score:       c.Score,
		Hops:        c.Path.Hops(),
		Path:        make([]types.PathSegment, 0, len(c.Path.Edges)),
		Explanation: c.Explanation,
	}
	for i, edge := range c.Path.Edges {
		result.Path = append(result.Path, types.PathSegment{
			FromID:     c.Path.Entities[i].ID,
			Relation:   c.Path.Directions[i],
			ToID:       c.Path.Entities[i+1].ID,
			Confidence: edge.Confidence,
			SourceID:   edge.Provenance.SourceID,
		})
	}
	return result
}

func summarize(e *types.Entity) types.EntitySummary {
	return types.EntitySummary{
		ID:         e.ID,
		Type:       e.Type,
		Label:      e.Label,
		Geometry:   e.Geometry,
		Attributes: e.Attributes,
	}
}
