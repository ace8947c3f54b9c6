package model

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingModel identifies an embedding model and its declared vector
// dimension. Models must be registered before vectors can be stored.
type EmbeddingModel struct {
	ModelID   string    `json:"model_id"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

// EmbeddingRecord is one versioned vector for an entity under a model.
// Records are append-only: re-embedding supersedes the previous current
// record instead of updating it in place. For a given (entity, model) pair
// at most one record is current, and versions strictly increase.
type EmbeddingRecord struct {
	ID        uuid.UUID `json:"id"`
	EntityID  uuid.UUID `json:"entity_id"`
	ModelID   string    `json:"model_id"`
	Vector    []float32 `json:"vector,omitempty"`
	Version   int       `json:"version"`
	IsCurrent bool      `json:"is_current"`
	CreatedAt time.Time `json:"created_at"`
}

// SimilarityMatch is one ANN search hit: an entity and its cosine similarity
// to the query vector.
type SimilarityMatch struct {
	EntityID   uuid.UUID `json:"entity_id"`
	Similarity float64   `json:"similarity"`
}
