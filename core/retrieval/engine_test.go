package retrieval

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sitegraph/sitegraph/helper"
	"github.com/sitegraph/sitegraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchValidation(t *testing.T) {
	engine, _, _, _ := initEngine(t)
	ctx := context.Background()

	t.Run("Search without any signal fails", func(t *testing.T) {
		_, err := engine.Search(ctx, model.SearchConfig{})
		assert.ErrorIs(t, err, helper.ErrValidation, "Expected a query without signals to be rejected")
	})

	t.Run("Embedding query without model fails", func(t *testing.T) {
		config := model.DefaultSearchConfig()
		config.EmbeddingQuery = []float32{1, 0, 0}

		_, err := engine.Search(ctx, config)
		assert.ErrorIs(t, err, helper.ErrValidation, "Expected an embedding query without a model to be rejected")
	})
}

func TestSearchTextOnly(t *testing.T) {
	engine, entities, _, _ := initEngine(t)
	ctx := context.Background()

	strong := registerEntity(t, entities, model.EntityTypeSurveyPoint, "pipeline crossing marker", 0.9)
	weak := registerEntity(t, entities, model.EntityTypeSurveyPoint, "pipeline crossing stake", 0.1)
	registerEntity(t, entities, model.EntityTypeLayer, "V-TOPO-MAJR", 0.9)

	config := model.DefaultSearchConfig()
	config.TextQuery = "pipeline crossing"

	response, err := engine.Search(ctx, config)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(response.Results), 2, "Expected both pipeline entities")

	for _, result := range response.Results {
		assert.Equal(t, "text", result.RetrievalMethod)
		require.NotNil(t, result.TextRank, "Expected a text rank on a text query")
		assert.Nil(t, result.VectorSimilarity, "Expected no similarity without a vector signal")
		assert.Equal(t, 0, result.HopDistance)
	}

	// Equal lexical rank, so the quality term decides
	assert.Equal(t, strong.ID, response.Results[0].Entity.ID, "Expected the higher-quality entity first")
	assert.Equal(t, weak.ID, response.Results[1].Entity.ID)
	assert.Greater(t, response.Results[0].CombinedScore, response.Results[1].CombinedScore)
}

func TestSearchVectorOnly(t *testing.T) {
	engine, entities, embeddings, _ := initEngine(t)
	ctx := context.Background()

	modelID := "engine-vector-model"
	_, err := embeddings.RegisterModel(modelID, 3)
	require.NoError(t, err)

	near := registerEntity(t, entities, model.EntityTypeSurveyPoint, "vector near entity", 0.5)
	far := registerEntity(t, entities, model.EntityTypeSurveyPoint, "vector far entity", 0.5)

	_, err = embeddings.UpsertEmbedding(near.ID, modelID, []float32{1, 0, 0})
	require.NoError(t, err)
	_, err = embeddings.UpsertEmbedding(far.ID, modelID, []float32{0, 1, 0})
	require.NoError(t, err)

	config := model.DefaultSearchConfig()
	config.EmbeddingQuery = []float32{1, 0, 0}
	config.ModelID = modelID

	response, err := engine.Search(ctx, config)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(response.Results), 2)

	assert.Equal(t, near.ID, response.Results[0].Entity.ID, "Expected the nearest vector first")
	assert.Equal(t, "vector", response.Results[0].RetrievalMethod)
	require.NotNil(t, response.Results[0].VectorSimilarity)
	assert.Nil(t, response.Results[0].TextRank, "Expected no text rank without a text signal")
}

func TestSearchHybrid(t *testing.T) {
	engine, entities, embeddings, _ := initEngine(t)
	ctx := context.Background()

	modelID := "engine-hybrid-model"
	_, err := embeddings.RegisterModel(modelID, 3)
	require.NoError(t, err)

	// Matches both signals
	both := registerEntity(t, entities, model.EntityTypeSurveyPoint, "culvert inlet point", 0.5)
	_, err = embeddings.UpsertEmbedding(both.ID, modelID, []float32{1, 0, 0})
	require.NoError(t, err)

	// Matches only the lexical signal
	textOnly := registerEntity(t, entities, model.EntityTypeSurveyPoint, "culvert outlet point", 0.5)

	// Matches only the vector signal
	vectorOnly := registerEntity(t, entities, model.EntityTypeSurveyPoint, "drainage structure", 0.5)
	_, err = embeddings.UpsertEmbedding(vectorOnly.ID, modelID, []float32{0.9, 0.1, 0})
	require.NoError(t, err)

	config := model.DefaultSearchConfig()
	config.TextQuery = "culvert"
	config.EmbeddingQuery = []float32{1, 0, 0}
	config.ModelID = modelID

	response, err := engine.Search(ctx, config)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(response.Results), 3, "Expected candidates from both signals merged")

	assert.Equal(t, both.ID, response.Results[0].Entity.ID, "Expected the entity matching both signals first")

	byID := map[uuid.UUID]*model.SearchResult{}
	for _, result := range response.Results {
		byID[result.Entity.ID] = result
		assert.Equal(t, "hybrid", result.RetrievalMethod)
	}

	require.Contains(t, byID, both.ID)
	assert.NotNil(t, byID[both.ID].TextRank)
	assert.NotNil(t, byID[both.ID].VectorSimilarity)

	require.Contains(t, byID, textOnly.ID)
	assert.NotNil(t, byID[textOnly.ID].TextRank)
	assert.Nil(t, byID[textOnly.ID].VectorSimilarity, "Expected a lexical-only candidate to carry no similarity")

	require.Contains(t, byID, vectorOnly.ID)
	assert.Nil(t, byID[vectorOnly.ID].TextRank, "Expected a vector-only candidate to carry no text rank")
	assert.NotNil(t, byID[vectorOnly.ID].VectorSimilarity)
}

func TestSearchFilters(t *testing.T) {
	engine, entities, embeddings, _ := initEngine(t)
	ctx := context.Background()

	modelID := "engine-filter-model"
	_, err := embeddings.RegisterModel(modelID, 3)
	require.NoError(t, err)

	point := registerEntity(t, entities, model.EntityTypeSurveyPoint, "filter boundary point", 0.9)
	layer := registerEntity(t, entities, model.EntityTypeLayer, "filter boundary layer", 0.9)
	lowQuality := registerEntity(t, entities, model.EntityTypeSurveyPoint, "filter boundary stub", 0.05)
	for _, entity := range []*model.Entity{point, layer, lowQuality} {
		_, err = embeddings.UpsertEmbedding(entity.ID, modelID, []float32{1, 0, 0})
		require.NoError(t, err)
	}

	t.Run("Type filter applies to both signals", func(t *testing.T) {
		pointType := model.EntityTypeSurveyPoint
		config := model.DefaultSearchConfig()
		config.TextQuery = "filter boundary"
		config.EmbeddingQuery = []float32{1, 0, 0}
		config.ModelID = modelID
		config.EntityType = &pointType

		response, err := engine.Search(ctx, config)
		require.NoError(t, err)
		require.NotEmpty(t, response.Results)
		for _, result := range response.Results {
			assert.Equal(t, pointType, result.Entity.Type, "Expected only survey points")
		}
	})

	t.Run("Quality floor filters candidates", func(t *testing.T) {
		config := model.DefaultSearchConfig()
		config.TextQuery = "filter boundary"
		config.EmbeddingQuery = []float32{1, 0, 0}
		config.ModelID = modelID
		config.MinQuality = 0.5

		response, err := engine.Search(ctx, config)
		require.NoError(t, err)
		require.NotEmpty(t, response.Results)
		for _, result := range response.Results {
			assert.GreaterOrEqual(t, result.Entity.QualityScore, 0.5)
			assert.NotEqual(t, lowQuality.ID, result.Entity.ID)
		}
	})

	t.Run("MaxResults caps the result list", func(t *testing.T) {
		config := model.DefaultSearchConfig()
		config.TextQuery = "filter boundary"
		config.MaxResults = 1

		response, err := engine.Search(ctx, config)
		require.NoError(t, err)
		assert.Len(t, response.Results, 1)
	})
}

func TestSearchGraphExpansion(t *testing.T) {
	engine, entities, embeddings, edges := initEngine(t)
	ctx := context.Background()

	modelID := "engine-expand-model"
	_, err := embeddings.RegisterModel(modelID, 3)
	require.NoError(t, err)

	hit := registerEntity(t, entities, model.EntityTypeSurveyPoint, "expansion anchor point", 0.9)
	neighbor := registerEntity(t, entities, model.EntityTypeLayer, "unrelated layer name", 0.5)
	twoHops := registerEntity(t, entities, model.EntityTypeDrawing, "unrelated drawing name", 0.5)

	require.NoError(t, edges.InsertEdge(&model.RelationshipEdge{
		SourceEntityID: hit.ID,
		TargetEntityID: neighbor.ID,
		Type:           model.RelationshipTypeReference,
		Strength:       0.9,
		Confidence:     1,
	}))
	require.NoError(t, edges.InsertEdge(&model.RelationshipEdge{
		SourceEntityID: neighbor.ID,
		TargetEntityID: twoHops.ID,
		Type:           model.RelationshipTypeHierarchical,
		Strength:       0.8,
		Confidence:     1,
	}))

	t.Run("One hop pulls in direct neighbors", func(t *testing.T) {
		config := model.DefaultSearchConfig()
		config.TextQuery = "expansion anchor"
		config.ExpandHops = 1

		response, err := engine.Search(ctx, config)
		require.NoError(t, err)

		byID := map[uuid.UUID]*model.SearchResult{}
		for _, result := range response.Results {
			byID[result.Entity.ID] = result
		}

		require.Contains(t, byID, hit.ID)
		assert.Equal(t, "text", byID[hit.ID].RetrievalMethod)

		require.Contains(t, byID, neighbor.ID, "Expected the neighbor as graph context")
		assert.Equal(t, "graph", byID[neighbor.ID].RetrievalMethod)
		assert.Equal(t, 1, byID[neighbor.ID].HopDistance)

		assert.NotContains(t, byID, twoHops.ID, "Expected the 2-hop entity to stay outside a 1-hop expansion")
	})

	t.Run("Two hops reach further", func(t *testing.T) {
		config := model.DefaultSearchConfig()
		config.TextQuery = "expansion anchor"
		config.ExpandHops = 2

		response, err := engine.Search(ctx, config)
		require.NoError(t, err)

		byID := map[uuid.UUID]*model.SearchResult{}
		for _, result := range response.Results {
			byID[result.Entity.ID] = result
		}

		require.Contains(t, byID, twoHops.ID)
		assert.Equal(t, 2, byID[twoHops.ID].HopDistance)
	})
}

func TestSearchDeadlinePartial(t *testing.T) {
	engine, entities, embeddings, _ := initEngine(t)

	modelID := "engine-deadline-model"
	_, err := embeddings.RegisterModel(modelID, 3)
	require.NoError(t, err)

	hit := registerEntity(t, entities, model.EntityTypeSurveyPoint, "deadline partial marker", 0.5)
	_, err = embeddings.UpsertEmbedding(hit.ID, modelID, []float32{1, 0, 0})
	require.NoError(t, err)

	// Expired before the vector phase runs; the lexical candidates already
	// gathered come back as a flagged partial.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	config := model.DefaultSearchConfig()
	config.TextQuery = "deadline partial"
	config.EmbeddingQuery = []float32{1, 0, 0}
	config.ModelID = modelID

	response, err := engine.Search(ctx, config)
	require.NoError(t, err, "Expected an expired deadline to truncate, not fail")
	assert.True(t, response.Truncated)

	require.NotEmpty(t, response.Results, "Expected the lexical candidates to survive")
	assert.Equal(t, hit.ID, response.Results[0].Entity.ID)
	assert.NotNil(t, response.Results[0].TextRank)
	assert.Nil(t, response.Results[0].VectorSimilarity)
}

func TestFindSimilar(t *testing.T) {
	engine, entities, embeddings, _ := initEngine(t)
	ctx := context.Background()

	modelID := "engine-similar-model"
	_, err := embeddings.RegisterModel(modelID, 3)
	require.NoError(t, err)

	anchor := registerEntity(t, entities, model.EntityTypeSurveyPoint, "find similar anchor", 0.5)
	other := registerEntity(t, entities, model.EntityTypeSurveyPoint, "find similar other", 0.5)
	_, err = embeddings.UpsertEmbedding(anchor.ID, modelID, []float32{1, 0, 0})
	require.NoError(t, err)
	_, err = embeddings.UpsertEmbedding(other.ID, modelID, []float32{0.9, 0.1, 0})
	require.NoError(t, err)

	t.Run("Similar entities exclude the anchor", func(t *testing.T) {
		matches, err := engine.FindSimilar(ctx, anchor.ID, modelID, 10, -1)
		require.NoError(t, err)
		require.NotEmpty(t, matches)
		for _, match := range matches {
			assert.NotEqual(t, anchor.ID, match.EntityID)
		}
	})

	t.Run("Anchor without embedding fails", func(t *testing.T) {
		bare := registerEntity(t, entities, model.EntityTypeSurveyPoint, "find similar bare", 0.5)

		_, err := engine.FindSimilar(ctx, bare.ID, modelID, 10, 0)
		assert.ErrorIs(t, err, helper.ErrNotFound)
	})
}

func TestEngineTraverse(t *testing.T) {
	engine, entities, _, edges := initEngine(t)
	ctx := context.Background()

	a := registerEntity(t, entities, model.EntityTypeSurveyPoint, "engine traverse a", 0.5)
	b := registerEntity(t, entities, model.EntityTypeSurveyPoint, "engine traverse b", 0.5)
	require.NoError(t, edges.InsertEdge(&model.RelationshipEdge{
		SourceEntityID: a.ID,
		TargetEntityID: b.ID,
		Type:           model.RelationshipTypeSpatial,
		Strength:       0.9,
		Confidence:     1,
	}))

	t.Run("Outgoing edge reaches the target", func(t *testing.T) {
		result, err := engine.Traverse(ctx, a.ID, model.DefaultTraversalConfig())
		require.NoError(t, err)
		require.Len(t, result.Nodes, 1)
		assert.Equal(t, b.ID, result.Nodes[0].EntityID)
	})

	t.Run("Incoming edge is not walked backwards", func(t *testing.T) {
		result, err := engine.Traverse(ctx, b.ID, model.DefaultTraversalConfig())
		require.NoError(t, err)
		assert.Empty(t, result.Nodes, "Expected the walk to only follow edges source to target")
	})
}
