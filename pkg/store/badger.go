package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/cartograph/pkg/spatial"
	"github.com/soundprediction/cartograph/pkg/types"
)

// Key layout. Ids and edge keys are opaque, so components are joined with a
// NUL byte that cannot appear in them.
const (
	prefixEntity = "ent\x00"
	prefixEdge   = "rel\x00"
	prefixOut    = "out\x00"
	prefixIn     = "in\x00"
	prefixAlias  = "ali\x00"
	sep          = "\x00"
)

// BadgerStore is an embedded persistent GraphStore. Entities, edges, alias
// entries and adjacency postings are JSON values under typed key prefixes;
// the spatial grid is rebuilt from entities at open time and maintained on
// writes. Badger transactions give the single-writer-per-key discipline.
type BadgerStore struct {
	db   *badger.DB
	grid *spatial.Grid
}

// OpenBadgerStore opens (or creates) a badger-backed store at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w: %v", path, types.ErrStoreUnavailable, err)
	}

	s := &BadgerStore{db: db, grid: spatial.NewGrid(1.0)}
	if err := s.rebuildGrid(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

var _ GraphStore = (*BadgerStore)(nil)

func (s *BadgerStore) rebuildGrid() error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefixEntity)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var e types.Entity
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decode entity: %w", err)
			}
			s.grid.Insert(e.ID, e.Geometry)
		}
		return nil
	})
}

// PutEntity creates or updates an entity inside a single transaction.
func (s *BadgerStore) PutEntity(ctx context.Context, entity *types.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	stored := *entity
	stored.UpdatedAt = now
	stored.CreatedAt = now

	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := getEntityTxn(txn, entity.ID)
		if err == nil {
			if existing.Type != entity.Type {
				return fmt.Errorf("entity %s: %w", entity.ID, types.ErrImmutableType)
			}
			stored.CreatedAt = existing.CreatedAt
			for _, name := range existing.Names() {
				if err := txn.Delete(aliasKey(name, existing.ID)); err != nil {
					return err
				}
			}
		} else if !errors.Is(err, types.ErrEntityNotFound) {
			return err
		}

		val, err := json.Marshal(&stored)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixEntity+stored.ID), val); err != nil {
			return err
		}
		for _, name := range stored.Names() {
			if err := txn.Set(aliasKey(name, stored.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapBadger(err)
	}
	s.grid.Insert(stored.ID, stored.Geometry)
	return nil
}

// GetEntity retrieves an entity by id.
func (s *BadgerStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	var entity *types.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		e, err := getEntityTxn(txn, id)
		entity = e
		return err
	})
	if err != nil {
		return nil, wrapBadger(err)
	}
	return entity, nil
}

// Degree counts adjacency postings in both directions.
func (s *BadgerStore) Degree(ctx context.Context, id string) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		for _, prefix := range []string{prefixOut + id + sep, prefixIn + id + sep} {
			it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
			for it.Rewind(); it.Valid(); it.Next() {
				count++
			}
			it.Close()
		}
		return nil
	})
	return count, wrapBadger(err)
}

// PutRelationship upserts an edge with confidence reconciliation. Endpoint
// existence is verified in the same transaction.
func (s *BadgerStore) PutRelationship(ctx context.Context, rel *types.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	key := rel.Key()
	now := time.Now().UTC()

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := getEntityTxn(txn, rel.SourceID); err != nil {
			return fmt.Errorf("source %q: %w", rel.SourceID, types.ErrEndpointMissing)
		}
		if _, err := getEntityTxn(txn, rel.TargetID); err != nil {
			return fmt.Errorf("target %q: %w", rel.TargetID, types.ErrEndpointMissing)
		}

		stored := *rel
		stored.UpdatedAt = now
		stored.CreatedAt = now

		item, err := txn.Get([]byte(prefixEdge + key))
		switch {
		case err == nil:
			var existing types.Relationship
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			}); err != nil {
				return err
			}
			if !reconcile(&existing, rel) {
				return nil
			}
			stored.CreatedAt = existing.CreatedAt
		case errors.Is(err, badger.ErrKeyNotFound):
			if err := txn.Set([]byte(prefixOut+rel.SourceID+sep+key), nil); err != nil {
				return err
			}
			if err := txn.Set([]byte(prefixIn+rel.TargetID+sep+key), nil); err != nil {
				return err
			}
		default:
			return err
		}

		val, err := json.Marshal(&stored)
		if err != nil {
			return err
		}
		return txn.Set([]byte(prefixEdge+key), val)
	})
	return wrapBadger(err)
}

// Neighbors returns adjacent edges in both directions in key order.
func (s *BadgerStore) Neighbors(ctx context.Context, id string, relationTypes []types.RelationType) ([]Neighbor, error) {
	wanted := make(map[types.RelationType]bool, len(relationTypes))
	for _, t := range relationTypes {
		if !types.KnownRelationType(t) {
			return nil, fmt.Errorf("relation hint %q: %w", t, types.ErrUnknownRelation)
		}
		wanted[t] = true
	}

	var neighbors []Neighbor
	err := s.db.View(func(txn *badger.Txn) error {
		collect := func(prefix string, outgoing bool) error {
			it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
			defer it.Close()
			for it.Rewind(); it.Valid(); it.Next() {
				edgeKey := string(bytes.TrimPrefix(it.Item().Key(), []byte(prefix)))
				edge, err := getEdgeTxn(txn, edgeKey)
				if err != nil {
					return err
				}
				traversed := edge.Type
				otherID := edge.TargetID
				if !outgoing {
					traversed, _ = types.InverseRelation(edge.Type)
					otherID = edge.SourceID
				}
				if len(wanted) > 0 && !wanted[traversed] {
					continue
				}
				other, err := getEntityTxn(txn, otherID)
				if err != nil {
					continue // dangling posting, skip
				}
				neighbors = append(neighbors, Neighbor{Edge: edge, Entity: other, Traversed: traversed})
			}
			return nil
		}
		if err := collect(prefixOut+id+sep, true); err != nil {
			return err
		}
		return collect(prefixIn+id+sep, false)
	})
	return neighbors, wrapBadger(err)
}

// FindByAlias returns exact matches first, then substring matches over the
// alias index.
func (s *BadgerStore) FindByAlias(ctx context.Context, text string) ([]*types.Entity, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil, nil
	}

	seen := make(map[string]bool)
	var result []*types.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		appendEntity := func(id string) error {
			if seen[id] {
				return nil
			}
			seen[id] = true
			e, err := getEntityTxn(txn, id)
			if err != nil {
				return nil
			}
			result = append(result, e)
			return nil
		}

		exact := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefixAlias + needle + sep)})
		for exact.Rewind(); exact.Valid(); exact.Next() {
			parts := strings.SplitN(strings.TrimPrefix(string(exact.Item().Key()), prefixAlias), sep, 2)
			if len(parts) == 2 {
				if err := appendEntity(parts[1]); err != nil {
					return err
				}
			}
		}
		exact.Close()

		var partialIDs []string
		all := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefixAlias)})
		for all.Rewind(); all.Valid(); all.Next() {
			parts := strings.SplitN(strings.TrimPrefix(string(all.Item().Key()), prefixAlias), sep, 2)
			if len(parts) == 2 && parts[0] != needle && strings.Contains(parts[0], needle) {
				partialIDs = append(partialIDs, parts[1])
			}
		}
		all.Close()

		sort.Strings(partialIDs)
		for _, id := range partialIDs {
			if err := appendEntity(id); err != nil {
				return err
			}
		}
		return nil
	})
	return result, wrapBadger(err)
}

// SpatialQuery answers through the in-memory grid and hydrates entities from
// badger.
func (s *BadgerStore) SpatialQuery(ctx context.Context, constraint *types.SpatialConstraint) ([]SpatialMatch, error) {
	if err := constraint.Geometry.Validate(); err != nil {
		return nil, err
	}
	hits := s.grid.Query(constraint)

	matches := make([]SpatialMatch, 0, len(hits))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, hit := range hits {
			e, err := getEntityTxn(txn, hit.ID)
			if err != nil {
				continue
			}
			matches = append(matches, SpatialMatch{Entity: e, DistanceMeters: hit.DistanceMeters})
		}
		return nil
	})
	return matches, wrapBadger(err)
}

// Stats scans the entity and edge prefixes.
func (s *BadgerStore) Stats(ctx context.Context) (*GraphStats, error) {
	stats := &GraphStats{
		EntitiesByType:  make(map[types.EntityType]int),
		RelationsByType: make(map[types.RelationType]int),
	}
	err := s.db.View(func(txn *badger.Txn) error {
		ents := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefixEntity)})
		for ents.Rewind(); ents.Valid(); ents.Next() {
			var e types.Entity
			if err := ents.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			stats.Entities++
			stats.EntitiesByType[e.Type]++
		}
		ents.Close()

		edges := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefixEdge)})
		for edges.Rewind(); edges.Valid(); edges.Next() {
			var r types.Relationship
			if err := edges.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return err
			}
			stats.Relationships++
			stats.RelationsByType[r.Type]++
		}
		edges.Close()
		return nil
	})
	return stats, wrapBadger(err)
}

// Close releases the underlying badger database.
func (s *BadgerStore) Close() error { return s.db.Close() }

func aliasKey(name, id string) []byte {
	return []byte(prefixAlias + strings.ToLower(name) + sep + id)
}

func getEntityTxn(txn *badger.Txn, id string) (*types.Entity, error) {
	item, err := txn.Get([]byte(prefixEntity + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("entity %q: %w", id, types.ErrEntityNotFound)
	}
	if err != nil {
		return nil, err
	}
	var e types.Entity
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	}); err != nil {
		return nil, err
	}
	return &e, nil
}

func getEdgeTxn(txn *badger.Txn, key string) (*types.Relationship, error) {
	item, err := txn.Get([]byte(prefixEdge + key))
	if err != nil {
		return nil, err
	}
	var r types.Relationship
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &r)
	}); err != nil {
		return nil, err
	}
	return &r, nil
}

func wrapBadger(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrEntityNotFound),
		errors.Is(err, types.ErrEndpointMissing),
		errors.Is(err, types.ErrImmutableType),
		errors.Is(err, types.ErrUnknownRelation),
		errors.Is(err, types.ErrInvalidGeometry):
		return err
	case errors.Is(err, badger.ErrDBClosed):
		return fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	default:
		return err
	}
}
