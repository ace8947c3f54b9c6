package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sitegraph/sitegraph/core/graph"
	"github.com/sitegraph/sitegraph/database"
	"github.com/sitegraph/sitegraph/helper"
	"github.com/sitegraph/sitegraph/model"
)

// Engine provides hybrid retrieval over the lexical, vector and quality
// signals, with optional graph expansion of the top results.
type Engine struct {
	entities   *database.EntitiesDBHandler
	embeddings *database.EmbeddingsDBHandler
	edges      *database.EdgesDBHandler
}

// NewEngine creates a new retrieval engine
func NewEngine(entities *database.EntitiesDBHandler, embeddings *database.EmbeddingsDBHandler, edges *database.EdgesDBHandler) *Engine {
	return &Engine{
		entities:   entities,
		embeddings: embeddings,
		edges:      edges,
	}
}

// Search runs a hybrid query. At least one of TextQuery and EmbeddingQuery
// must be set; absent signals have their ranking weight renormalized away.
// Candidates from both signals are merged per entity, scored with the
// effective weights and returned best-first, capped at MaxResults. When
// ExpandHops is positive, graph context around the ranked results is
// appended with RetrievalMethod "graph". Deadline expiry mid-search returns
// whatever partial has been assembled, flagged Truncated, not an error.
func (e *Engine) Search(ctx context.Context, config model.SearchConfig) (*model.SearchResponse, error) {
	hasText := config.TextQuery != ""
	hasVector := len(config.EmbeddingQuery) > 0

	if !hasText && !hasVector {
		return nil, helper.NewError("search validation",
			fmt.Errorf("%w: neither text query nor embedding query given", helper.ErrValidation))
	}
	if hasVector && config.ModelID == "" {
		return nil, helper.NewError("search validation",
			fmt.Errorf("%w: embedding query without model id", helper.ErrValidation))
	}
	if config.TopK <= 0 {
		config.TopK = model.DefaultSearchConfig().TopK
	}
	if config.MaxResults <= 0 {
		config.MaxResults = model.DefaultSearchConfig().MaxResults
	}
	// A config with all weights zeroed means the caller did not set them.
	if config.TextWeight == 0 && config.VectorWeight == 0 && config.QualityWeight == 0 {
		defaults := model.DefaultSearchConfig()
		config.TextWeight = defaults.TextWeight
		config.VectorWeight = defaults.VectorWeight
		config.QualityWeight = defaults.QualityWeight
	}

	w, err := renormalizeWeights(config.TextWeight, config.VectorWeight, config.QualityWeight, hasText, hasVector)
	if err != nil {
		return nil, err
	}

	method := "hybrid"
	if !hasVector {
		method = "text"
	} else if !hasText {
		method = "vector"
	}

	candidates := map[uuid.UUID]*model.SearchResult{}

	// Ranks whatever candidates have been gathered so far. Deadline expiry
	// mid-query hands back this partial flagged as truncated instead of an
	// error.
	assemble := func(truncated bool) *model.SearchResponse {
		results := make([]*model.SearchResult, 0, len(candidates))
		for _, candidate := range candidates {
			candidate.CombinedScore = combine(w, candidate)
			candidate.RetrievalMethod = method
			results = append(results, candidate)
		}
		sortResults(results)

		if len(results) > config.MaxResults {
			results = results[:config.MaxResults]
		}
		return &model.SearchResponse{Results: results, Truncated: truncated}
	}

	if hasText {
		matches, err := e.entities.SearchEntitiesByText(config.TextQuery, config.EntityType, config.MinQuality, config.TopK)
		if err != nil {
			if ctx.Err() != nil {
				return assemble(true), nil
			}
			return nil, err
		}
		for _, match := range matches {
			rank := match.TextRank
			candidates[match.Entity.ID] = &model.SearchResult{
				Entity:       match.Entity,
				TextRank:     &rank,
				QualityScore: match.Entity.QualityScore,
			}
		}
	}

	if hasVector {
		matches, err := e.embeddings.SelectSimilar(ctx, config.EmbeddingQuery, config.ModelID, config.TopK, config.MinSimilarity)
		if err != nil {
			if ctx.Err() != nil {
				return assemble(true), nil
			}
			return nil, err
		}
		for _, match := range matches {
			if candidate, ok := candidates[match.EntityID]; ok {
				similarity := match.Similarity
				candidate.VectorSimilarity = &similarity
				continue
			}

			entity, err := e.entities.SelectEntity(match.EntityID)
			if err != nil {
				if errors.Is(err, helper.ErrNotFound) {
					continue
				}
				if ctx.Err() != nil {
					return assemble(true), nil
				}
				return nil, err
			}
			if !entity.IsActive || entity.QualityScore < config.MinQuality {
				continue
			}
			if config.EntityType != nil && entity.Type != *config.EntityType {
				continue
			}

			similarity := match.Similarity
			candidates[match.EntityID] = &model.SearchResult{
				Entity:           entity,
				VectorSimilarity: &similarity,
				QualityScore:     entity.QualityScore,
			}
		}
	}

	response := assemble(false)

	if config.ExpandHops > 0 {
		err := e.expand(ctx, response, config)
		if err != nil {
			if ctx.Err() != nil {
				response.Truncated = true
				return response, nil
			}
			return nil, err
		}
	}

	return response, nil
}

// FindSimilar returns the entities most similar to an existing entity's
// current vector under a model, excluding the entity itself. Returns
// helper.ErrNotFound when the entity has no current embedding.
func (e *Engine) FindSimilar(ctx context.Context, entityID uuid.UUID, modelID string, topK int, minSimilarity float64) ([]*model.SimilarityMatch, error) {
	if topK <= 0 {
		topK = model.DefaultSearchConfig().TopK
	}
	return e.embeddings.SelectSimilarToEntity(ctx, entityID, modelID, topK, minSimilarity)
}

// Traverse runs a bounded breadth-first walk from a start entity over the
// relationship graph.
func (e *Engine) Traverse(ctx context.Context, startID uuid.UUID, config model.TraversalConfig) (*model.TraversalResult, error) {
	return graph.Traverse(ctx, e.graphStore(), startID, config)
}

// expand appends graph context around the ranked results. Entities already
// in the result list are not duplicated; expanded entities carry their hop
// distance from the nearest direct hit.
func (e *Engine) expand(ctx context.Context, response *model.SearchResponse, config model.SearchConfig) error {
	var typeFilter *model.RelationshipType
	if len(config.ExpandTypes) == 1 {
		typeFilter = &config.ExpandTypes[0]
	}

	seen := map[uuid.UUID]bool{}
	for _, result := range response.Results {
		seen[result.Entity.ID] = true
	}

	store := e.graphStore()
	for _, result := range response.Results {
		if result.RetrievalMethod == "graph" {
			continue
		}

		traversal, err := graph.Traverse(ctx, store, result.Entity.ID, model.TraversalConfig{
			MaxHops:    config.ExpandHops,
			TypeFilter: typeFilter,
			MaxVisited: model.DefaultTraversalConfig().MaxVisited,
		})
		if err != nil {
			return err
		}
		if traversal.Truncated {
			response.Truncated = true
		}

		for _, node := range traversal.Nodes {
			if seen[node.EntityID] {
				continue
			}
			if len(config.ExpandTypes) > 1 && !pathMatches(node.Path, config.ExpandTypes) {
				continue
			}

			entity, err := e.entities.SelectEntity(node.EntityID)
			if err != nil {
				if errors.Is(err, helper.ErrNotFound) {
					continue
				}
				return err
			}
			if !entity.IsActive {
				continue
			}

			seen[node.EntityID] = true
			// Expanded entities matched no query signal, so quality is the
			// only score they carry.
			response.Results = append(response.Results, &model.SearchResult{
				Entity:          entity,
				QualityScore:    entity.QualityScore,
				CombinedScore:   entity.QualityScore,
				HopDistance:     node.HopDistance,
				RetrievalMethod: "graph",
			})
		}
	}

	return nil
}

// pathMatches reports whether every relationship type on the path is one of
// the allowed types.
func pathMatches(path []model.RelationshipType, allowed []model.RelationshipType) bool {
	for _, step := range path {
		found := false
		for _, t := range allowed {
			if step == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (e *Engine) graphStore() graph.Store {
	return &handlerStore{entities: e.entities, edges: e.edges}
}

// handlerStore adapts the database handlers to the traversal store interface.
type handlerStore struct {
	entities *database.EntitiesDBHandler
	edges    *database.EdgesDBHandler
}

func (s *handlerStore) HasActiveEntity(ctx context.Context, id uuid.UUID) (bool, error) {
	entity, err := s.entities.SelectEntity(id)
	if err != nil {
		if errors.Is(err, helper.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return entity.IsActive, nil
}

func (s *handlerStore) EdgesForEntity(ctx context.Context, id uuid.UUID, typeFilter *model.RelationshipType) ([]*model.RelationshipEdge, error) {
	return s.edges.SelectEdgesForEntity(id, model.DirectionOut, typeFilter)
}
