package quality

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sitegraph/sitegraph/helper"
	"github.com/sitegraph/sitegraph/model"
)

// Scoring weights. Completeness dominates; the embedding bonus and the
// capped relationship term reward connectedness without letting a hub
// entity saturate the score.
const (
	completenessWeight = 0.70
	embeddingBonus     = 0.15
	relationshipUnit   = 0.05
	relationshipCap    = 0.15
)

// EntityStore is the slice of the entity registry the scorer needs.
type EntityStore interface {
	SelectEntity(id uuid.UUID) (*model.Entity, error)
	UpdateEntityQuality(id uuid.UUID, score float64) error
}

// EmbeddingStore reports embedding presence for the embedding term.
type EmbeddingStore interface {
	HasCurrentEmbedding(entityID uuid.UUID) (bool, error)
}

// EdgeStore counts relationships for the connectedness term.
type EdgeStore interface {
	CountActiveRelationships(entityID uuid.UUID) (int, error)
}

// CompletenessProvider supplies the attribute-completeness ratio in [0,1]
// for an entity. Completeness is domain knowledge owned by the caller (which
// attributes a survey point must carry differs from a drawing), so it is
// injected rather than computed here.
type CompletenessProvider interface {
	Completeness(ctx context.Context, entity *model.Entity) (float64, error)
}

// Score computes the quality score from its three inputs. The result is
// clamped to [0,1]. Returns helper.ErrInvalidWeight when completeness falls
// outside [0,1].
func Score(completeness float64, hasEmbedding bool, activeRelationships int) (float64, error) {
	if completeness < 0 || completeness > 1 {
		return 0, helper.NewError("completeness validation",
			fmt.Errorf("%w: completeness %v", helper.ErrInvalidWeight, completeness))
	}

	score := completenessWeight * completeness
	if hasEmbedding {
		score += embeddingBonus
	}

	relationshipTerm := relationshipUnit * float64(activeRelationships)
	if relationshipTerm > relationshipCap {
		relationshipTerm = relationshipCap
	}
	score += relationshipTerm

	if score > 1 {
		score = 1
	}
	return score, nil
}

// Scorer recomputes and persists entity quality scores.
type Scorer struct {
	entities   EntityStore
	embeddings EmbeddingStore
	edges      EdgeStore
	provider   CompletenessProvider
	logger     *slog.Logger
}

// NewScorer creates a scorer over the given stores. The completeness
// provider may be nil, in which case every score is computed degraded with
// completeness 0.
func NewScorer(entities EntityStore, embeddings EmbeddingStore, edges EdgeStore, provider CompletenessProvider, logger *slog.Logger) *Scorer {
	return &Scorer{
		entities:   entities,
		embeddings: embeddings,
		edges:      edges,
		provider:   provider,
		logger:     logger,
	}
}

// Recompute recalculates an entity's quality score from its current state
// and persists it. When the completeness provider is unavailable or fails,
// the score is still computed and persisted with completeness 0 and the
// result is marked degraded, so retrieval keeps working on stale-but-sane
// scores.
func (s *Scorer) Recompute(ctx context.Context, entityID uuid.UUID) (*model.QualityResult, error) {
	entity, err := s.entities.SelectEntity(entityID)
	if err != nil {
		return nil, err
	}

	hasEmbedding, err := s.embeddings.HasCurrentEmbedding(entityID)
	if err != nil {
		return nil, err
	}

	activeRelationships, err := s.edges.CountActiveRelationships(entityID)
	if err != nil {
		return nil, err
	}

	completeness := 0.0
	degraded := true
	if s.provider == nil {
		s.logger.Warn("No completeness provider configured, scoring degraded",
			slog.String("entity_id", entityID.String()))
	} else {
		ratio, providerErr := s.provider.Completeness(ctx, entity)
		if providerErr != nil {
			s.logger.Warn("Completeness provider failed, scoring degraded",
				slog.String("entity_id", entityID.String()),
				slog.Any("error", providerErr),
			)
		} else {
			completeness = ratio
			degraded = false
		}
	}

	score, err := Score(completeness, hasEmbedding, activeRelationships)
	if err != nil {
		return nil, err
	}

	err = s.entities.UpdateEntityQuality(entityID, score)
	if err != nil {
		return nil, err
	}

	return &model.QualityResult{Score: score, Degraded: degraded}, nil
}
