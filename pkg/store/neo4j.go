package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/soundprediction/cartograph/pkg/spatial"
	"github.com/soundprediction/cartograph/pkg/types"
)

// Neo4jStore implements GraphStore on a Neo4j database. Entities are
// (:Entity) nodes keyed by id; relationships are [:REL] edges carrying the
// relation type, confidence and provenance as properties, keyed by
// (source, target, type). Attributes and geometry round-trip as JSON
// properties so the store stays schema-free.
//
// Store and index failures are wrapped as ErrStoreUnavailable and left for
// the caller to retry.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore connects to a Neo4j instance.
func NewNeo4jStore(uri, username, password, database string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w: %v", types.ErrStoreUnavailable, err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{client: driver, database: database}, nil
}

var _ GraphStore = (*Neo4jStore)(nil)

func (n *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
}

// PutEntity merges the entity node by id, rejecting type changes.
func (n *Neo4jStore) PutEntity(ctx context.Context, entity *types.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}
	attrs, err := json.Marshal(entity.Attributes)
	if err != nil {
		return err
	}
	geom, err := json.Marshal(entity.Geometry)
	if err != nil {
		return err
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MERGE (e:Entity {id: $id})
			ON CREATE SET e.type = $type, e.created_at = datetime()
			WITH e, e.type AS existing_type
			WHERE existing_type = $type
			SET e.label = $label,
				e.aliases = $aliases,
				e.attributes = $attributes,
				e.geometry = $geometry,
				e.updated_at = datetime()
			RETURN e.id
		`, map[string]any{
			"id":         entity.ID,
			"type":       string(entity.Type),
			"label":      entity.Label,
			"aliases":    entity.Aliases,
			"attributes": string(attrs),
			"geometry":   string(geom),
		})
		if err != nil {
			return nil, err
		}
		if _, err := res.Single(ctx); err != nil {
			return nil, fmt.Errorf("entity %s: %w", entity.ID, types.ErrImmutableType)
		}
		return nil, nil
	})
	return wrapNeo4j(err)
}

// GetEntity retrieves an entity by id.
func (n *Neo4jStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Entity {id: $id})
			RETURN e.id AS id, e.type AS type, e.label AS label,
				e.aliases AS aliases, e.attributes AS attributes,
				e.geometry AS geometry
		`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, fmt.Errorf("entity %q: %w", id, types.ErrEntityNotFound)
		}
		return entityFromRecord(record.AsMap())
	})
	if err != nil {
		return nil, wrapNeo4j(err)
	}
	return result.(*types.Entity), nil
}

// Degree counts attached relationships.
func (n *Neo4jStore) Degree(ctx context.Context, id string) (int, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Entity {id: $id})
			RETURN COUNT { (e)--() } AS degree
		`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return int64(0), nil
		}
		degree, _ := record.Get("degree")
		return degree, nil
	})
	if err != nil {
		return 0, wrapNeo4j(err)
	}
	deg, _ := result.(int64)
	return int(deg), nil
}

// PutRelationship merges the edge by (source, target, type); the incumbent
// is kept when the incoming edge has lower confidence and its provenance is
// not strictly newer.
func (n *Neo4jStore) PutRelationship(ctx context.Context, rel *types.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	attrs, err := json.Marshal(rel.Attributes)
	if err != nil {
		return err
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (s:Entity {id: $source}), (t:Entity {id: $target})
			MERGE (s)-[r:REL {relation_type: $type}]->(t)
			ON CREATE SET r.confidence = $confidence,
				r.attributes = $attributes,
				r.source_doc = $source_doc,
				r.extraction_id = $extraction_id,
				r.extracted_at = $extracted_at,
				r.created_at = datetime(),
				r.updated_at = datetime()
			WITH r
			WHERE $confidence >= r.confidence OR $extracted_at > r.extracted_at
			SET r.confidence = $confidence,
				r.attributes = $attributes,
				r.source_doc = $source_doc,
				r.extraction_id = $extraction_id,
				r.extracted_at = $extracted_at,
				r.updated_at = datetime()
			RETURN r
		`, map[string]any{
			"source":        rel.SourceID,
			"target":        rel.TargetID,
			"type":          string(rel.Type),
			"confidence":    rel.Confidence,
			"attributes":    string(attrs),
			"source_doc":    rel.Provenance.SourceID,
			"extraction_id": rel.Provenance.ExtractionID,
			"extracted_at":  rel.Provenance.ExtractedAt.UTC(),
		})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		// MERGE matched nothing when an endpoint is missing.
		if summary.Counters().RelationshipsCreated() == 0 && summary.Counters().PropertiesSet() == 0 {
			exists, err := tx.Run(ctx, `
				MATCH (s:Entity {id: $source})-[r:REL {relation_type: $type}]->(t:Entity {id: $target})
				RETURN r LIMIT 1
			`, map[string]any{"source": rel.SourceID, "target": rel.TargetID, "type": string(rel.Type)})
			if err != nil {
				return nil, err
			}
			if _, err := exists.Single(ctx); err != nil {
				return nil, types.ErrEndpointMissing
			}
		}
		return nil, nil
	})
	return wrapNeo4j(err)
}

// Neighbors returns adjacent edges in both directions, reporting the inverse
// type for incoming edges.
func (n *Neo4jStore) Neighbors(ctx context.Context, id string, relationTypes []types.RelationType) ([]Neighbor, error) {
	for _, t := range relationTypes {
		if !types.KnownRelationType(t) {
			return nil, fmt.Errorf("relation hint %q: %w", t, types.ErrUnknownRelation)
		}
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Entity {id: $id})-[r:REL]-(other:Entity)
			RETURN startNode(r).id AS source, endNode(r).id AS target,
				r.relation_type AS type, r.confidence AS confidence,
				r.attributes AS attributes, r.source_doc AS source_doc,
				r.extraction_id AS extraction_id, r.extracted_at AS extracted_at,
				other.id AS other_id, other.type AS other_type,
				other.label AS other_label, other.aliases AS other_aliases,
				other.attributes AS other_attributes, other.geometry AS other_geometry
			ORDER BY source, type, target
		`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		wanted := make(map[types.RelationType]bool, len(relationTypes))
		for _, t := range relationTypes {
			wanted[t] = true
		}

		var neighbors []Neighbor
		for _, record := range records {
			row := record.AsMap()
			edge, err := edgeFromRow(row)
			if err != nil {
				return nil, err
			}
			traversed := edge.Type
			if edge.TargetID == id && edge.SourceID != id {
				traversed, _ = types.InverseRelation(edge.Type)
			}
			if len(wanted) > 0 && !wanted[traversed] {
				continue
			}
			other, err := entityFromRecord(map[string]any{
				"id": row["other_id"], "type": row["other_type"],
				"label": row["other_label"], "aliases": row["other_aliases"],
				"attributes": row["other_attributes"], "geometry": row["other_geometry"],
			})
			if err != nil {
				return nil, err
			}
			neighbors = append(neighbors, Neighbor{Edge: edge, Entity: other, Traversed: traversed})
		}
		return neighbors, nil
	})
	if err != nil {
		return nil, wrapNeo4j(err)
	}
	return result.([]Neighbor), nil
}

// FindByAlias matches label or aliases, exact first then substring.
func (n *Neo4jStore) FindByAlias(ctx context.Context, text string) ([]*types.Entity, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil, nil
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Entity)
			WITH e, [name IN [e.label] + coalesce(e.aliases, []) | toLower(name)] AS names
			WHERE any(name IN names WHERE name CONTAINS $needle)
			RETURN e.id AS id, e.type AS type, e.label AS label,
				e.aliases AS aliases, e.attributes AS attributes,
				e.geometry AS geometry,
				any(name IN names WHERE name = $needle) AS exact
			ORDER BY exact DESC, id
		`, map[string]any{"needle": needle})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		entities := make([]*types.Entity, 0, len(records))
		for _, record := range records {
			e, err := entityFromRecord(record.AsMap())
			if err != nil {
				return nil, err
			}
			entities = append(entities, e)
		}
		return entities, nil
	})
	if err != nil {
		return nil, wrapNeo4j(err)
	}
	return result.([]*types.Entity), nil
}

// SpatialQuery scans entities carrying geometry and evaluates the predicate
// client-side; geometry is an opaque JSON property, so the filtering cannot
// be pushed into cypher.
func (n *Neo4jStore) SpatialQuery(ctx context.Context, constraint *types.SpatialConstraint) ([]SpatialMatch, error) {
	if err := constraint.Geometry.Validate(); err != nil {
		return nil, err
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Entity)
			WHERE e.geometry IS NOT NULL AND e.geometry <> 'null'
			RETURN e.id AS id, e.type AS type, e.label AS label,
				e.aliases AS aliases, e.attributes AS attributes,
				e.geometry AS geometry
			ORDER BY id
		`, nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		grid := spatial.NewGrid(1.0)
		byID := make(map[string]*types.Entity, len(records))
		for _, record := range records {
			e, err := entityFromRecord(record.AsMap())
			if err != nil {
				return nil, err
			}
			byID[e.ID] = e
			grid.Insert(e.ID, e.Geometry)
		}

		hits := grid.Query(constraint)
		matches := make([]SpatialMatch, 0, len(hits))
		for _, hit := range hits {
			matches = append(matches, SpatialMatch{Entity: byID[hit.ID], DistanceMeters: hit.DistanceMeters})
		}
		return matches, nil
	})
	if err != nil {
		return nil, wrapNeo4j(err)
	}
	return result.([]SpatialMatch), nil
}

// Stats summarizes node and edge counts by type.
func (n *Neo4jStore) Stats(ctx context.Context) (*GraphStats, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		stats := &GraphStats{
			EntitiesByType:  make(map[types.EntityType]int),
			RelationsByType: make(map[types.RelationType]int),
		}

		nodes, err := tx.Run(ctx, `
			MATCH (e:Entity) RETURN e.type AS type, count(*) AS n
		`, nil)
		if err != nil {
			return nil, err
		}
		records, err := nodes.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			row := record.AsMap()
			count := int(row["n"].(int64))
			stats.Entities += count
			stats.EntitiesByType[types.EntityType(row["type"].(string))] = count
		}

		edges, err := tx.Run(ctx, `
			MATCH ()-[r:REL]->() RETURN r.relation_type AS type, count(*) AS n
		`, nil)
		if err != nil {
			return nil, err
		}
		records, err = edges.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			row := record.AsMap()
			count := int(row["n"].(int64))
			stats.Relationships += count
			stats.RelationsByType[types.RelationType(row["type"].(string))] = count
		}
		return stats, nil
	})
	if err != nil {
		return nil, wrapNeo4j(err)
	}
	return result.(*GraphStats), nil
}

// Close releases the driver.
func (n *Neo4jStore) Close() error {
	return n.client.Close(context.Background())
}

func entityFromRecord(row map[string]any) (*types.Entity, error) {
	e := &types.Entity{
		ID:    stringOr(row["id"]),
		Type:  types.EntityType(stringOr(row["type"])),
		Label: stringOr(row["label"]),
	}
	if aliases, ok := row["aliases"].([]any); ok {
		for _, a := range aliases {
			e.Aliases = append(e.Aliases, stringOr(a))
		}
	}
	if raw := stringOr(row["attributes"]); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &e.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes for %s: %w", e.ID, err)
		}
	}
	if raw := stringOr(row["geometry"]); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &e.Geometry); err != nil {
			return nil, fmt.Errorf("decode geometry for %s: %w", e.ID, err)
		}
	}
	return e, nil
}

func edgeFromRow(row map[string]any) (*types.Relationship, error) {
	edge := &types.Relationship{
		SourceID:   stringOr(row["source"]),
		TargetID:   stringOr(row["target"]),
		Type:       types.RelationType(stringOr(row["type"])),
		Confidence: floatOr(row["confidence"]),
		Provenance: types.Provenance{
			SourceID:     stringOr(row["source_doc"]),
			ExtractionID: stringOr(row["extraction_id"]),
		},
	}
	if t, ok := row["extracted_at"].(time.Time); ok {
		edge.Provenance.ExtractedAt = t
	}
	if raw := stringOr(row["attributes"]); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &edge.Attributes); err != nil {
			return nil, fmt.Errorf("decode edge attributes: %w", err)
		}
	}
	return edge, nil
}

func stringOr(v any) string {
	s, _ := v.(string)
	return s
}

func floatOr(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func wrapNeo4j(err error) error {
	switch {
	case err == nil:
		return nil
	case neo4j.IsConnectivityError(err):
		return fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	default:
		return err
	}
}
