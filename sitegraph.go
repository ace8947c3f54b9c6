package sitegraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/sitegraph/sitegraph/core/quality"
	"github.com/sitegraph/sitegraph/core/retrieval"
	"github.com/sitegraph/sitegraph/database"
	"github.com/sitegraph/sitegraph/embed"
	"github.com/sitegraph/sitegraph/helper"
	"github.com/sitegraph/sitegraph/model"
	loadSql "github.com/sitegraph/sitegraph/sql"
)

// Sitegraph provides a unified interface to the entity registry, embedding
// store, relationship graph, quality scorer and retrieval engine.
type Sitegraph struct {
	DB         *helper.Database
	Entities   *database.EntitiesDBHandler
	Embeddings *database.EmbeddingsDBHandler
	Edges      *database.EdgesDBHandler
	Engine     *retrieval.Engine
	Scorer     *quality.Scorer
	Worker     *quality.Worker
	Embedder   embed.EmbedFunc // Optional query/entity embedder
	// Logging
	log *slog.Logger
}

// NewSitegraph creates a new Sitegraph instance with all handlers
// initialized. The completeness provider feeds the quality scorer and may
// be nil, in which case scores are computed degraded.
func NewSitegraph(config *helper.DatabaseConfiguration, indexConfig model.IndexConfig, provider quality.CompletenessProvider) (*Sitegraph, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("sitegraph", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers in the correct order (entities first, both other
	// tables reference them). force=false to not reload if functions
	// already exist.
	entities, err := database.NewEntitiesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	embeddings, err := database.NewEmbeddingsDBHandler(db, indexConfig, false)
	if err != nil {
		return nil, helper.NewError("create embeddings handler", err)
	}

	edges, err := database.NewEdgesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create edges handler", err)
	}

	// Create retrieval engine with database handlers
	engine := retrieval.NewEngine(entities, embeddings, edges)

	// Quality scoring: synchronous scorer plus the async recompute worker
	// fed by the write paths.
	scorer := quality.NewScorer(entities, embeddings, edges, provider, logger)
	worker := quality.NewWorker(scorer, nil, logger)

	return &Sitegraph{
		DB:         db,
		Entities:   entities,
		Embeddings: embeddings,
		Edges:      edges,
		Engine:     engine,
		Scorer:     scorer,
		Worker:     worker,
		log:        logger,
	}, nil
}

// Close stops the recompute worker and closes the database connection.
func (s *Sitegraph) Close() error {
	if s.Worker != nil {
		s.Worker.Close()
	}
	if s.DB != nil && s.DB.Instance != nil {
		return s.DB.Instance.Close()
	}
	return nil
}

// SetEmbedder sets the embedder used for text queries and entity embedding.
func (s *Sitegraph) SetEmbedder(embedder embed.EmbedFunc) {
	s.Embedder = embedder
}

// UseDefaultEmbedder sets up the default sentence transformer embedder
// (all-MiniLM-L6-v2, 384 dimensions) and registers its embedding model.
func (s *Sitegraph) UseDefaultEmbedder() error {
	embedder, err := embed.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	_, err = s.Embeddings.RegisterModel(embed.DefaultModelID, embed.DefaultDimension)
	if err != nil {
		return helper.NewError("register default model", err)
	}

	s.Embedder = embedder
	return nil
}

// Register creates a new entity and schedules its initial quality score.
func (s *Sitegraph) Register(entity *model.Entity) error {
	err := s.Entities.RegisterEntity(entity)
	if err != nil {
		return err
	}

	s.log.Info("Registered entity",
		slog.String("entity_id", entity.ID.String()),
		slog.String("type", string(entity.Type)),
		slog.String("name", entity.CanonicalName),
	)

	s.Worker.Enqueue(entity.ID)
	return nil
}

// Get retrieves an entity by ID.
func (s *Sitegraph) Get(id uuid.UUID) (*model.Entity, error) {
	return s.Entities.SelectEntity(id)
}

// GetByName retrieves the oldest active entity with the given canonical
// name and type.
func (s *Sitegraph) GetByName(name string, entityType model.EntityType) (*model.Entity, error) {
	return s.Entities.SelectEntityByName(name, entityType)
}

// UpdateAttributes replaces an entity's attribute map and schedules a
// quality recompute.
func (s *Sitegraph) UpdateAttributes(id uuid.UUID, attributes model.Metadata) error {
	err := s.Entities.UpdateEntityAttributes(id, attributes)
	if err != nil {
		return err
	}

	s.Worker.Enqueue(id)
	return nil
}

// Deactivate soft-deletes an entity. Its embedding and edge history stays
// queryable, but it disappears from search, traversal and similarity
// results. Schedules a quality recompute like every other entity write.
func (s *Sitegraph) Deactivate(id uuid.UUID) error {
	err := s.Entities.DeactivateEntity(id)
	if err != nil {
		return err
	}

	s.Worker.Enqueue(id)
	return nil
}

// UpsertEmbedding stores a vector for an entity, superseding the previous
// current version, and schedules a quality recompute.
func (s *Sitegraph) UpsertEmbedding(ctx context.Context, entityID uuid.UUID, modelID string, vector []float32) (*model.EmbeddingRecord, error) {
	record, err := s.Embeddings.UpsertEmbedding(entityID, modelID, vector)
	if err != nil {
		return nil, err
	}

	// Recluster the similarity index once enough new vectors accumulated.
	reindexed, err := s.Embeddings.MaybeReindex(ctx)
	if err != nil {
		s.log.Warn("Reindex after upsert failed", slog.Any("error", err))
	} else if reindexed {
		s.log.Info("Reindexed similarity indexes after upsert threshold")
	}

	s.Worker.Enqueue(entityID)
	return record, nil
}

// EmbedEntity embeds an entity's canonical name with the configured
// embedder and stores the vector under the default model.
func (s *Sitegraph) EmbedEntity(ctx context.Context, entityID uuid.UUID) (*model.EmbeddingRecord, error) {
	if s.Embedder == nil {
		return nil, helper.NewError("embed entity", fmt.Errorf("embedder not set, use SetEmbedder() first"))
	}

	entity, err := s.Entities.SelectEntity(entityID)
	if err != nil {
		return nil, err
	}

	vector, err := s.Embedder(entity.CanonicalName)
	if err != nil {
		return nil, helper.NewError("generate embedding", err)
	}

	return s.UpsertEmbedding(ctx, entityID, embed.DefaultModelID, vector)
}

// AddEdge creates a directed relationship between two entities and
// schedules quality recomputes for both endpoints.
func (s *Sitegraph) AddEdge(edge *model.RelationshipEdge) error {
	err := s.Edges.InsertEdge(edge)
	if err != nil {
		return err
	}

	s.Worker.Enqueue(edge.SourceEntityID)
	s.Worker.Enqueue(edge.TargetEntityID)
	return nil
}

// RemoveEdge soft-deletes an edge and schedules quality recomputes for
// both endpoints.
func (s *Sitegraph) RemoveEdge(id uuid.UUID) error {
	edge, err := s.Edges.SelectEdge(id)
	if err != nil {
		return err
	}

	err = s.Edges.SoftDeleteEdge(id)
	if err != nil {
		return err
	}

	s.Worker.Enqueue(edge.SourceEntityID)
	s.Worker.Enqueue(edge.TargetEntityID)
	return nil
}

// EdgesFor retrieves the active edges touching an entity.
func (s *Sitegraph) EdgesFor(entityID uuid.UUID, direction model.Direction, typeFilter *model.RelationshipType) ([]*model.RelationshipEdge, error) {
	return s.Edges.SelectEdgesForEntity(entityID, direction, typeFilter)
}

// Traverse runs a bounded breadth-first walk from a start entity.
func (s *Sitegraph) Traverse(ctx context.Context, startID uuid.UUID, config model.TraversalConfig) (*model.TraversalResult, error) {
	return s.Engine.Traverse(ctx, startID, config)
}

// Search runs a hybrid query over the lexical, vector and quality signals.
func (s *Sitegraph) Search(ctx context.Context, config model.SearchConfig) (*model.SearchResponse, error) {
	return s.Engine.Search(ctx, config)
}

// SearchText runs a hybrid query from a plain text query: the text is used
// as the lexical signal and, when an embedder is configured, embedded for
// the vector signal too.
func (s *Sitegraph) SearchText(ctx context.Context, query string, config model.SearchConfig) (*model.SearchResponse, error) {
	config.TextQuery = query

	if s.Embedder != nil {
		vector, err := s.Embedder(query)
		if err != nil {
			return nil, helper.NewError("generate embedding", err)
		}
		config.EmbeddingQuery = vector
		if config.ModelID == "" {
			config.ModelID = embed.DefaultModelID
		}
	}

	return s.Engine.Search(ctx, config)
}

// FindSimilar returns the entities most similar to an existing entity,
// excluding the entity itself.
func (s *Sitegraph) FindSimilar(ctx context.Context, entityID uuid.UUID, modelID string, topK int, minSimilarity float64) ([]*model.SimilarityMatch, error) {
	return s.Engine.FindSimilar(ctx, entityID, modelID, topK, minSimilarity)
}

// RecomputeQuality synchronously recomputes and persists an entity's
// quality score.
func (s *Sitegraph) RecomputeQuality(ctx context.Context, entityID uuid.UUID) (*model.QualityResult, error) {
	return s.Scorer.Recompute(ctx, entityID)
}

// ReindexNow rebuilds the similarity indexes of all registered models.
func (s *Sitegraph) ReindexNow(ctx context.Context) error {
	return s.Embeddings.ReindexNow(ctx)
}
