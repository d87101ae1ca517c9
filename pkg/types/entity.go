package types

import "time"

// EntityType classifies a node in the knowledge graph.
type EntityType string

const (
	EntityDataset      EntityType = "Dataset"
	EntitySensor       EntityType = "Sensor"
	EntitySatellite    EntityType = "Satellite"
	EntityRegion       EntityType = "Region"
	EntityDocument     EntityType = "Document"
	EntityParameter    EntityType = "Parameter"
	EntityOrganization EntityType = "Organization"
)

var knownEntityTypes = map[EntityType]bool{
	EntityDataset:      true,
	EntitySensor:       true,
	EntitySatellite:    true,
	EntityRegion:       true,
	EntityDocument:     true,
	EntityParameter:    true,
	EntityOrganization: true,
}

// KnownEntityType reports whether t is a recognized entity type.
func KnownEntityType(t EntityType) bool { return knownEntityTypes[t] }

// Entity is a node in the knowledge graph. The ID is a stable opaque
// identifier and the type is immutable after creation.
type Entity struct {
	ID         string                 `json:"id" yaml:"id"`
	Type       EntityType             `json:"type" yaml:"type"`
	Label      string                 `json:"label" yaml:"label"`
	Aliases    []string               `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Geometry   *Geometry              `json:"geometry,omitempty" yaml:"geometry,omitempty"`
	CreatedAt  time.Time              `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at" yaml:"updated_at,omitempty"`
}

// Validate checks the fields required for an upsert.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if e.Label == "" {
		return ErrEmptyLabel
	}
	if !KnownEntityType(e.Type) {
		return ErrUnknownType
	}
	return e.Geometry.Validate()
}

// Names returns the label and all aliases, label first.
func (e *Entity) Names() []string {
	names := make([]string, 0, len(e.Aliases)+1)
	names = append(names, e.Label)
	return append(names, e.Aliases...)
}
