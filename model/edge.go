package model

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipType represents the type of relationship between entities
type RelationshipType string

const (
	RelationshipTypeSpatial      RelationshipType = "spatial"
	RelationshipTypeEngineering  RelationshipType = "engineering"
	RelationshipTypeSemantic     RelationshipType = "semantic"
	RelationshipTypeHierarchical RelationshipType = "hierarchical"
	RelationshipTypeReference    RelationshipType = "reference"
)

// Direction selects which edges of an entity to query.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// RelationshipEdge is a directed, typed, weighted link between two entities.
// Edges are directed but indexed from both endpoints. Self-loops are
// rejected, as is an exact active duplicate of (source, target, type).
type RelationshipEdge struct {
	ID             uuid.UUID        `json:"id"`
	SourceEntityID uuid.UUID        `json:"source_entity_id"`
	TargetEntityID uuid.UUID        `json:"target_entity_id"`
	Type           RelationshipType `json:"relationship_type"`
	Strength       float64          `json:"strength"`
	Confidence     float64          `json:"confidence"`
	Metadata       Metadata         `json:"metadata,omitempty"`
	IsActive       bool             `json:"is_active"`
	CreatedAt      time.Time        `json:"created_at"`
}
