// Package retrieve runs bounded breadth-first traversal over the knowledge
// graph: seed from resolved mentions (or a spatial range query), expand up
// to a hop limit, filter, score and rank candidates deterministically.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/soundprediction/cartograph/pkg/spatial"
	"github.com/soundprediction/cartograph/pkg/store"
	"github.com/soundprediction/cartograph/pkg/types"
)

const (
	// DefaultHopLimit bounds traversal depth.
	DefaultHopLimit = 3
	// DefaultSeedCap bounds the spatial seeding fan-out.
	DefaultSeedCap = 500
)

// Config tunes the retriever.
type Config struct {
	HopLimit int
	SeedCap  int
	Weights  Weights
}

// Result is the ranked output of one retrieval run. Partial is true when
// the candidate list is known to be incomplete: seed cap hit, deadline
// fired mid-traversal, or no seeds at all.
type Result struct {
	Candidates []types.AnswerCandidate
	Partial    bool
}

// Retriever traverses the graph store. Stateless per call, safe for
// concurrent use.
type Retriever struct {
	entities  store.EntityStore
	relations store.RelationStore
	spatialDB store.SpatialQuerier
	config    Config
	logger    *slog.Logger
}

// New creates a retriever over the given store interfaces.
func New(entities store.EntityStore, relations store.RelationStore, spatialDB store.SpatialQuerier, config Config, logger *slog.Logger) *Retriever {
	if config.HopLimit <= 0 {
		config.HopLimit = DefaultHopLimit
	}
	if config.SeedCap <= 0 {
		config.SeedCap = DefaultSeedCap
	}
	if config.Weights == (Weights{}) {
		config.Weights = DefaultWeights()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		entities:  entities,
		relations: relations,
		spatialDB: spatialDB,
		config:    config,
		logger:    logger,
	}
}

// seed is one traversal starting point with the confidence of the mention
// (or spatial match) that produced it.
type seed struct {
	id         string
	confidence float64
}

// Retrieve expands the graph from the query's seed entities and returns at
// most k candidates, descending by score with terminal id as tie-break.
// An empty seed set is not an error: it returns an empty Result with
// Partial set. Unknown relation hints are rejected with ErrInvalidQuery.
func (r *Retriever) Retrieve(ctx context.Context, query *types.StructuredQuery, k int) (*Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", types.ErrInvalidLimit, k)
	}
	for _, hint := range query.RelationHints {
		if !types.KnownRelationType(hint) {
			return nil, fmt.Errorf("%w: unknown relation type %q", types.ErrInvalidQuery, hint)
		}
	}

	seeds, spatiallySeeded, partial, err := r.collectSeeds(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		r.logger.Debug("no seed entities for query", slog.String("raw", query.RawText))
		return &Result{Partial: true}, nil
	}

	// The spatial post-filter applies when the constraint did not already
	// shape the seed set; spatially seeded runs would only re-check seeds.
	postFilter := query.Spatial != nil && !spatiallySeeded

	var candidates []types.AnswerCandidate
	for _, s := range seeds {
		paths, hitDeadline, err := r.traverse(ctx, s.id, query.RelationHints)
		if err != nil {
			return nil, err
		}
		if hitDeadline {
			partial = true
		}
		for _, path := range paths {
			terminal := path.Terminal()
			if query.ResultTypeFilter != "" && terminal.Type != query.ResultTypeFilter {
				continue
			}
			if postFilter {
				if terminal.Geometry == nil {
					continue
				}
				if ok, _ := spatial.Satisfies(terminal.Geometry, query.Spatial); !ok {
					continue
				}
			}
			score, explanation := r.scorePath(path, s.confidence, query.Spatial)
			candidates = append(candidates, types.AnswerCandidate{
				Path:        *path,
				Score:       score,
				Explanation: explanation,
			})
		}
		if hitDeadline {
			break
		}
	}

	candidates = dedupByTerminal(candidates)
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Path.Terminal().ID < candidates[j].Path.Terminal().ID
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return &Result{Candidates: candidates, Partial: partial}, nil
}

// collectSeeds unions the resolved mention ids, falling back to a spatial
// range query when no mention resolved. Both paths are capped; hitting the
// cap keeps the most confident (or nearest) subset and marks the run
// partial.
func (r *Retriever) collectSeeds(ctx context.Context, query *types.StructuredQuery) ([]seed, bool, bool, error) {
	byID := query.SeedIDs()
	if len(byID) > 0 {
		seeds := make([]seed, 0, len(byID))
		for id, confidence := range byID {
			seeds = append(seeds, seed{id: id, confidence: confidence})
		}
		sort.Slice(seeds, func(i, j int) bool {
			if seeds[i].confidence != seeds[j].confidence {
				return seeds[i].confidence > seeds[j].confidence
			}
			return seeds[i].id < seeds[j].id
		})
		partial := false
		if len(seeds) > r.config.SeedCap {
			seeds = seeds[:r.config.SeedCap]
			partial = true
		}
		return seeds, false, partial, nil
	}

	if query.Spatial == nil {
		return nil, false, false, nil
	}

	matches, err := r.spatialDB.SpatialQuery(ctx, query.Spatial)
	if err != nil {
		return nil, false, false, err
	}
	partial := false
	if len(matches) > r.config.SeedCap {
		// Matches arrive nearest-first, so the cap keeps the closest.
		matches = matches[:r.config.SeedCap]
		partial = true
	}
	seeds := make([]seed, 0, len(matches))
	for _, m := range matches {
		seeds = append(seeds, seed{id: m.Entity.ID, confidence: 1.0})
	}
	return seeds, true, partial, nil
}

// traverse runs breadth-first expansion from one seed, returning a path to
// every reachable entity within the hop limit, the seed itself included as
// a zero-hop path. A visited set per run makes cyclic graphs safe. The
// deadline is checked at each hop boundary; on expiry whatever was found
// so far is returned with hitDeadline true.
func (r *Retriever) traverse(ctx context.Context, seedID string, hints []types.RelationType) ([]*types.Path, bool, error) {
	root, err := r.entities.GetEntity(ctx, seedID)
	if err != nil {
		// A stale mention pointing at a deleted entity yields no paths
		// rather than failing the whole query.
		if errors.Is(err, types.ErrEntityNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	visited := map[string]bool{seedID: true}
	frontier := []*types.Path{{Entities: []*types.Entity{root}}}
	paths := []*types.Path{frontier[0]}

	for hop := 0; hop < r.config.HopLimit; hop++ {
		if err := ctx.Err(); err != nil {
			r.logger.Debug("traversal aborted at hop boundary",
				slog.String("seed", seedID), slog.Int("hop", hop))
			return paths, true, nil
		}
		var next []*types.Path
		for _, path := range frontier {
			neighbors, err := r.relations.Neighbors(ctx, path.Terminal().ID, hints)
			if err != nil {
				return nil, false, err
			}
			for _, n := range neighbors {
				if visited[n.Entity.ID] {
					continue
				}
				visited[n.Entity.ID] = true
				extended := extendPath(path, n)
				paths = append(paths, extended)
				next = append(next, extended)
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return paths, false, nil
}

func extendPath(path *types.Path, n store.Neighbor) *types.Path {
	entities := make([]*types.Entity, len(path.Entities), len(path.Entities)+1)
	copy(entities, path.Entities)
	edges := make([]*types.Relationship, len(path.Edges), len(path.Edges)+1)
	copy(edges, path.Edges)
	directions := make([]types.RelationType, len(path.Directions), len(path.Directions)+1)
	copy(directions, path.Directions)
	return &types.Path{
		Entities:   append(entities, n.Entity),
		Edges:      append(edges, n.Edge),
		Directions: append(directions, n.Traversed),
	}
}

// dedupByTerminal merges candidates sharing a terminal entity, keeping the
// highest-scoring path and recording the alternatives as extra explanation
// lines.
func dedupByTerminal(candidates []types.AnswerCandidate) []types.AnswerCandidate {
	best := make(map[string]int)
	var out []types.AnswerCandidate
	for _, c := range candidates {
		id := c.Path.Terminal().ID
		i, seen := best[id]
		if !seen {
			best[id] = len(out)
			out = append(out, c)
			continue
		}
		keep, drop := out[i], c
		if drop.Score > keep.Score {
			keep, drop = drop, keep
		}
		keep.Explanation = append(keep.Explanation,
			fmt.Sprintf("also reachable from %s in %d hops", drop.Path.Seed().ID, drop.Path.Hops()))
		out[i] = keep
	}
	return out
}
