// Package store defines the Entity/Relation Store contract consumed by the
// retrieval pipeline and provides in-memory, badger and neo4j
// implementations. Interfaces are segregated by concern; consumers should
// depend on the smallest one that meets their needs.
package store

import (
	"context"

	"github.com/soundprediction/cartograph/pkg/types"
)

// Neighbor is one adjacent edge/entity pair returned by Neighbors.
type Neighbor struct {
	Edge   *types.Relationship
	Entity *types.Entity
	// Traversed is the relation type as seen from the queried entity: the
	// stored type for outgoing edges, its inverse for incoming ones.
	Traversed types.RelationType
}

// SpatialMatch is one entity matching a spatial query, with its distance to
// the query geometry.
type SpatialMatch struct {
	Entity         *types.Entity
	DistanceMeters float64
}

// GraphStats summarizes the stored graph.
type GraphStats struct {
	Entities        int                        `json:"entities"`
	Relationships   int                        `json:"relationships"`
	EntitiesByType  map[types.EntityType]int   `json:"entities_by_type"`
	RelationsByType map[types.RelationType]int `json:"relations_by_type"`
}

// EntityStore provides entity upserts and lookups. PutEntity rejects a
// change of the immutable entity type.
type EntityStore interface {
	PutEntity(ctx context.Context, entity *types.Entity) error
	GetEntity(ctx context.Context, id string) (*types.Entity, error)
	// Degree returns the number of edges attached to the entity, used as
	// the canonicality tie-break during mention resolution.
	Degree(ctx context.Context, id string) (int, error)
}

// RelationStore provides edge upserts and adjacency. PutRelationship
// requires both endpoints to exist and applies confidence reconciliation:
// an edge with the same (source, target, type) replaces the stored one only
// when its provenance is strictly newer or its confidence is not lower.
type RelationStore interface {
	PutRelationship(ctx context.Context, rel *types.Relationship) error
	// Neighbors returns adjacent edges in both directions. When
	// relationTypes is non-empty, only edges whose traversed type is in the
	// set are returned.
	Neighbors(ctx context.Context, id string, relationTypes []types.RelationType) ([]Neighbor, error)
}

// AliasFinder maps text to candidate entities by label or alias, exact
// matches first, then substring matches.
type AliasFinder interface {
	FindByAlias(ctx context.Context, text string) ([]*types.Entity, error)
}

// SpatialQuerier answers bounding-box, nearest and containment queries over
// entity geometries, nearest-first.
type SpatialQuerier interface {
	SpatialQuery(ctx context.Context, constraint *types.SpatialConstraint) ([]SpatialMatch, error)
}

// Admin provides maintenance operations.
type Admin interface {
	Stats(ctx context.Context) (*GraphStats, error)
}

// GraphStore is the full store contract.
type GraphStore interface {
	EntityStore
	RelationStore
	AliasFinder
	SpatialQuerier
	Admin
	Close() error
}

// reconcile decides whether incoming should replace current for the same
// edge key. Identical edges are no-ops; a lower-confidence edge wins only
// with strictly newer provenance.
func reconcile(current, incoming *types.Relationship) bool {
	if current.Equal(incoming) {
		return false
	}
	if incoming.Confidence < current.Confidence {
		return incoming.Provenance.Newer(current.Provenance)
	}
	return true
}
