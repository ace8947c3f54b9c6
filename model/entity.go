package model

import (
	"time"

	"github.com/google/uuid"
)

// EntityType tags an entity with its domain object kind. The set is fixed;
// ingestion collaborators must map their records onto one of these.
type EntityType string

const (
	EntityTypeLayer       EntityType = "layer"
	EntityTypeBlock       EntityType = "block"
	EntityTypeSurveyPoint EntityType = "survey_point"
	EntityTypeUtilityLine EntityType = "utility_line"
	EntityTypeDrawing     EntityType = "drawing"
	EntityTypeStandard    EntityType = "standard"
)

// OwnerRef is the explicit tagged union pointing at the external domain
// record that owns an entity: Kind names the owning collection, Ref is an
// opaque identifier within it. Ownership is never inferred from naming
// conventions.
type OwnerRef struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref"`
}

// Entity represents a canonically-identified domain object tracked by the
// registry. The ID is stable and never reused; deletion is always soft so
// embedding and relationship history stays queryable for audit.
type Entity struct {
	ID            uuid.UUID  `json:"id"`
	Type          EntityType `json:"entity_type"`
	CanonicalName string     `json:"canonical_name"`
	Owner         OwnerRef   `json:"owner"`
	Attributes    Metadata   `json:"attributes,omitempty"`
	QualityScore  float64    `json:"quality_score"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
