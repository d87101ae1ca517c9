package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soundprediction/cartograph/pkg/spatial"
	"github.com/soundprediction/cartograph/pkg/types"
)

const writeShards = 64

// keyedMutex serializes writers per entity/edge key so concurrent upserts of
// the same key cannot interleave the read-reconcile-write sequence. Readers
// never take it; they see either the pre- or post-upsert state.
type keyedMutex struct {
	shards [writeShards]sync.Mutex
}

func (k *keyedMutex) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	m := &k.shards[h.Sum32()%writeShards]
	m.Lock()
	return m
}

// MemoryStore is the reference GraphStore: a read-mostly in-memory graph
// with alias and spatial indexes. It backs tests, the CLI and small
// deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[string]*types.Entity
	edges    map[string]*types.Relationship
	out      map[string][]string // entity id -> edge keys
	in       map[string][]string
	alias    map[string][]string // lowercased name -> entity ids

	writers keyedMutex
	grid    *spatial.Grid
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[string]*types.Entity),
		edges:    make(map[string]*types.Relationship),
		out:      make(map[string][]string),
		in:       make(map[string][]string),
		alias:    make(map[string][]string),
		grid:     spatial.NewGrid(1.0),
	}
}

var _ GraphStore = (*MemoryStore)(nil)

// PutEntity creates or updates an entity. The type is immutable after
// creation; geometry and alias index entries follow the update.
func (s *MemoryStore) PutEntity(ctx context.Context, entity *types.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}
	unlock := s.writers.lock(entity.ID)
	defer unlock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := *entity
	stored.UpdatedAt = now

	if existing, ok := s.entities[entity.ID]; ok {
		if existing.Type != entity.Type {
			return fmt.Errorf("entity %s: %w", entity.ID, types.ErrImmutableType)
		}
		stored.CreatedAt = existing.CreatedAt
		s.dropAliasesLocked(existing)
	} else {
		stored.CreatedAt = now
	}

	s.entities[entity.ID] = &stored
	for _, name := range stored.Names() {
		key := strings.ToLower(name)
		s.alias[key] = appendUnique(s.alias[key], stored.ID)
	}
	s.grid.Insert(stored.ID, stored.Geometry)
	return nil
}

// GetEntity retrieves an entity by id.
func (s *MemoryStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %q: %w", id, types.ErrEntityNotFound)
	}
	cp := *e
	return &cp, nil
}

// Degree returns the number of attached edges.
func (s *MemoryStore) Degree(ctx context.Context, id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.out[id]) + len(s.in[id]), nil
}

// PutRelationship upserts an edge by (source, target, type) with confidence
// reconciliation. Both endpoints must exist at commit time.
func (s *MemoryStore) PutRelationship(ctx context.Context, rel *types.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	key := rel.Key()
	unlock := s.writers.lock(key)
	defer unlock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[rel.SourceID]; !ok {
		return fmt.Errorf("source %q: %w", rel.SourceID, types.ErrEndpointMissing)
	}
	if _, ok := s.entities[rel.TargetID]; !ok {
		return fmt.Errorf("target %q: %w", rel.TargetID, types.ErrEndpointMissing)
	}

	now := time.Now().UTC()
	stored := *rel
	stored.UpdatedAt = now

	if existing, ok := s.edges[key]; ok {
		if !reconcile(existing, rel) {
			return nil
		}
		stored.CreatedAt = existing.CreatedAt
		s.edges[key] = &stored
		return nil
	}

	stored.CreatedAt = now
	s.edges[key] = &stored
	s.out[rel.SourceID] = appendUnique(s.out[rel.SourceID], key)
	s.in[rel.TargetID] = appendUnique(s.in[rel.TargetID], key)
	return nil
}

// Neighbors returns adjacent edges in both directions, outgoing first, in
// deterministic key order.
func (s *MemoryStore) Neighbors(ctx context.Context, id string, relationTypes []types.RelationType) ([]Neighbor, error) {
	wanted := make(map[types.RelationType]bool, len(relationTypes))
	for _, t := range relationTypes {
		if !types.KnownRelationType(t) {
			return nil, fmt.Errorf("relation hint %q: %w", t, types.ErrUnknownRelation)
		}
		wanted[t] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var neighbors []Neighbor
	for _, key := range sorted(s.out[id]) {
		edge := s.edges[key]
		if len(wanted) > 0 && !wanted[edge.Type] {
			continue
		}
		if target, ok := s.entities[edge.TargetID]; ok {
			e, t := *edge, *target
			neighbors = append(neighbors, Neighbor{Edge: &e, Entity: &t, Traversed: edge.Type})
		}
	}
	for _, key := range sorted(s.in[id]) {
		edge := s.edges[key]
		inverse, _ := types.InverseRelation(edge.Type)
		if len(wanted) > 0 && !wanted[inverse] {
			continue
		}
		if source, ok := s.entities[edge.SourceID]; ok {
			e, src := *edge, *source
			neighbors = append(neighbors, Neighbor{Edge: &e, Entity: &src, Traversed: inverse})
		}
	}
	return neighbors, nil
}

// FindByAlias returns exact label/alias matches first, then entities whose
// label or alias contains the text, each group ordered by id.
func (s *MemoryStore) FindByAlias(ctx context.Context, text string) ([]*types.Entity, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var result []*types.Entity
	for _, id := range sorted(s.alias[needle]) {
		if e, ok := s.entities[id]; ok && !seen[id] {
			seen[id] = true
			cp := *e
			result = append(result, &cp)
		}
	}

	var partial []string
	for name, ids := range s.alias {
		if name == needle || !strings.Contains(name, needle) {
			continue
		}
		partial = append(partial, ids...)
	}
	for _, id := range sorted(partial) {
		if e, ok := s.entities[id]; ok && !seen[id] {
			seen[id] = true
			cp := *e
			result = append(result, &cp)
		}
	}
	return result, nil
}

// SpatialQuery returns entities whose geometry satisfies the constraint,
// nearest-first.
func (s *MemoryStore) SpatialQuery(ctx context.Context, constraint *types.SpatialConstraint) ([]SpatialMatch, error) {
	if err := constraint.Geometry.Validate(); err != nil {
		return nil, err
	}
	hits := s.grid.Query(constraint)

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]SpatialMatch, 0, len(hits))
	for _, hit := range hits {
		if e, ok := s.entities[hit.ID]; ok {
			cp := *e
			matches = append(matches, SpatialMatch{Entity: &cp, DistanceMeters: hit.DistanceMeters})
		}
	}
	return matches, nil
}

// Stats summarizes the stored graph.
func (s *MemoryStore) Stats(ctx context.Context) (*GraphStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &GraphStats{
		Entities:        len(s.entities),
		Relationships:   len(s.edges),
		EntitiesByType:  make(map[types.EntityType]int),
		RelationsByType: make(map[types.RelationType]int),
	}
	for _, e := range s.entities {
		stats.EntitiesByType[e.Type]++
	}
	for _, r := range s.edges {
		stats.RelationsByType[r.Type]++
	}
	return stats, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) dropAliasesLocked(e *types.Entity) {
	for _, name := range e.Names() {
		key := strings.ToLower(name)
		ids := s.alias[key]
		for i, id := range ids {
			if id == e.ID {
				s.alias[key] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(s.alias[key]) == 0 {
			delete(s.alias, key)
		}
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func sorted(list []string) []string {
	cp := append([]string(nil), list...)
	sort.Strings(cp)
	return cp
}
