// Package index implements the lexical/semantic index: it maps text spans
// to candidate entities, first by alias/label lookup against the store, then
// by cosine nearest-neighbor over name embeddings when no lexical match
// exists.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/soundprediction/cartograph/pkg/embedder"
	"github.com/soundprediction/cartograph/pkg/store"
	"github.com/soundprediction/cartograph/pkg/types"
)

// Candidate is one entity resolved for a span, best-first.
type Candidate struct {
	ID         string
	Similarity float64
	Degree     int
}

// Index resolves text spans to entities. Embeddings are optional: with a
// nil embedder client the index is lexical-only and ResolveSemantic returns
// nothing.
type Index struct {
	entities store.EntityStore
	finder   store.AliasFinder
	embedder embedder.Client

	mu      sync.RWMutex
	vectors map[string][]float32 // entity id -> name embedding
}

// New creates an index over the given store. emb may be nil.
func New(entities store.EntityStore, finder store.AliasFinder, emb embedder.Client) *Index {
	return &Index{
		entities: entities,
		finder:   finder,
		embedder: emb,
		vectors:  make(map[string][]float32),
	}
}

// IndexEntity records the name embedding for an entity. Called on every
// upsert; a no-op without an embedder.
func (ix *Index) IndexEntity(ctx context.Context, e *types.Entity) error {
	if ix.embedder == nil {
		return nil
	}
	text := strings.Join(e.Names(), " ")
	vec, err := ix.embedder.EmbedSingle(ctx, text)
	if err != nil {
		return fmt.Errorf("embed entity %s: %w", e.ID, err)
	}
	ix.mu.Lock()
	ix.vectors[e.ID] = vec
	ix.mu.Unlock()
	return nil
}

// ResolveLexical resolves a span by exact alias/label match, falling back
// to substring matches at reduced confidence. Candidates with equal
// similarity are ordered by descending node degree, then id, so the more
// connected (more canonical) entity wins ties.
func (ix *Index) ResolveLexical(ctx context.Context, span string) ([]Candidate, error) {
	matches, err := ix.finder.FindByAlias(ctx, span)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(span))

	candidates := make([]Candidate, 0, len(matches))
	for _, e := range matches {
		similarity := 0.8
		for _, name := range e.Names() {
			if strings.ToLower(name) == needle {
				similarity = 1.0
				break
			}
		}
		degree, err := ix.entities.Degree(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, Candidate{ID: e.ID, Similarity: similarity, Degree: degree})
	}
	sortCandidates(candidates)
	return candidates, nil
}

// ResolveSemantic resolves a span by embedding nearest-neighbor lookup,
// returning candidates with cosine similarity at or above threshold.
func (ix *Index) ResolveSemantic(ctx context.Context, span string, threshold float64) ([]Candidate, error) {
	if ix.embedder == nil {
		return nil, nil
	}
	queryVec, err := ix.embedder.EmbedSingle(ctx, span)
	if err != nil {
		return nil, fmt.Errorf("embed span %q: %w", span, err)
	}

	ix.mu.RLock()
	ids := make([]string, 0, len(ix.vectors))
	for id := range ix.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var candidates []Candidate
	for _, id := range ids {
		similarity := cosine(queryVec, ix.vectors[id])
		if similarity >= threshold {
			candidates = append(candidates, Candidate{ID: id, Similarity: similarity})
		}
	}
	ix.mu.RUnlock()

	for i := range candidates {
		degree, err := ix.entities.Degree(ctx, candidates[i].ID)
		if err != nil {
			return nil, err
		}
		candidates[i].Degree = degree
	}
	sortCandidates(candidates)
	return candidates, nil
}

func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		if candidates[i].Degree != candidates[j].Degree {
			return candidates[i].Degree > candidates[j].Degree
		}
		return candidates[i].ID < candidates[j].ID
	})
}

// cosine returns the cosine similarity of two vectors, 0 for mismatched or
// zero-norm inputs.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
