package database

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/sitegraph/sitegraph/helper"
	"github.com/sitegraph/sitegraph/model"
	"github.com/sitegraph/sitegraph/sql"
)

// EmbeddingsDBHandlerFunctions defines the interface for embedding store operations.
type EmbeddingsDBHandlerFunctions interface {
	RegisterModel(modelID string, dimension int) (*model.EmbeddingModel, error)
	UpsertEmbedding(entityID uuid.UUID, modelID string, vector []float32) (*model.EmbeddingRecord, error)
	SelectCurrentEmbedding(entityID uuid.UUID, modelID string) (*model.EmbeddingRecord, error)
	SelectEmbeddingHistory(entityID uuid.UUID, modelID string) ([]*model.EmbeddingRecord, error)
	SelectSimilar(ctx context.Context, query []float32, modelID string, topK int, minSimilarity float64) ([]*model.SimilarityMatch, error)
	SelectSimilarToEntity(ctx context.Context, entityID uuid.UUID, modelID string, topK int, minSimilarity float64) ([]*model.SimilarityMatch, error)
	HasCurrentEmbedding(entityID uuid.UUID) (bool, error)
	MaybeReindex(ctx context.Context) (bool, error)
	ReindexNow(ctx context.Context) error
}

// EmbeddingsDBHandler handles embedding store database operations
type EmbeddingsDBHandler struct {
	db     *helper.Database
	config model.IndexConfig

	// Registered model dimensions, cached to pre-validate vector lengths
	// without a round trip.
	dimensions sync.Map // model_id -> int

	// Inserts since the last reindex; drives MaybeReindex.
	insertCount atomic.Int64
}

// NewEmbeddingsDBHandler creates a new embeddings database handler.
// It initializes the database connection and loads embedding-related SQL
// functions. If force is true, it will reload the SQL functions even if
// they already exist.
func NewEmbeddingsDBHandler(db *helper.Database, config model.IndexConfig, force bool) (*EmbeddingsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	embeddingsDbHandler := &EmbeddingsDBHandler{
		db:     db,
		config: config,
	}

	err := sql.LoadEmbeddingsSql(embeddingsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load embeddings sql", err)
	}

	err = embeddingsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EmbeddingsDBHandler")

	return embeddingsDbHandler, nil
}

// CreateTable creates the 'embedding_models' and 'embeddings' tables in the
// database. If the tables already exist, it does not create them again.
// It also creates all necessary indexes.
func (h *EmbeddingsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_embeddings();`)
	if err != nil {
		log.Panicf("error initializing embeddings tables: %#v", err)
	}

	h.db.Logger.Info("Checked/created tables embedding_models, embeddings")

	return nil
}

// RegisterModel registers an embedding model with its vector dimension and
// builds its similarity index. Registering an existing model with the same
// dimension is a no-op; a different dimension fails with
// helper.ErrDimensionMismatch.
func (h *EmbeddingsDBHandler) RegisterModel(modelID string, dimension int) (*model.EmbeddingModel, error) {
	embeddingModel := &model.EmbeddingModel{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM register_embedding_model($1, $2)`,
		modelID,
		dimension,
	)

	err := row.Scan(
		&embeddingModel.ModelID,
		&embeddingModel.Dimension,
		&embeddingModel.CreatedAt,
	)
	if err != nil {
		return nil, wrapDBError("scan", err)
	}

	_, err = h.db.Instance.Exec(
		`SELECT ensure_model_index($1, $2)`,
		modelID,
		h.config.Lists,
	)
	if err != nil {
		return nil, wrapDBError("ensure model index", err)
	}

	h.dimensions.Store(embeddingModel.ModelID, embeddingModel.Dimension)

	return embeddingModel, nil
}

// UpsertEmbedding stores a vector for an entity under a model. The previous
// current record (if any) is superseded and the new record gets version
// previous + 1. Concurrent upserts for the same (entity, model) are
// serialized inside the database.
func (h *EmbeddingsDBHandler) UpsertEmbedding(entityID uuid.UUID, modelID string, vector []float32) (*model.EmbeddingRecord, error) {
	if dim, ok := h.dimensions.Load(modelID); ok && dim.(int) != len(vector) {
		return nil, helper.NewError("vector validation",
			fmt.Errorf("%w: vector dimension %v does not match model dimension %v", helper.ErrDimensionMismatch, len(vector), dim))
	}

	record := &model.EmbeddingRecord{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_embedding($1, $2, $3)`,
		entityID,
		modelID,
		pgvector.NewVector(vector),
	)

	err := scanEmbedding(row, record)
	if err != nil {
		return nil, wrapDBError("scan", err)
	}

	h.insertCount.Add(1)

	return record, nil
}

// SelectCurrentEmbedding retrieves the current vector of an entity under a
// model. Returns helper.ErrNotFound when the entity has no current record.
func (h *EmbeddingsDBHandler) SelectCurrentEmbedding(entityID uuid.UUID, modelID string) (*model.EmbeddingRecord, error) {
	record := &model.EmbeddingRecord{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_current_embedding($1, $2)`,
		entityID,
		modelID,
	)

	err := scanEmbedding(row, record)
	if err != nil {
		return nil, wrapDBError("scan", err)
	}

	return record, nil
}

// SelectEmbeddingHistory retrieves all versions of an entity's embedding
// under a model, newest first.
func (h *EmbeddingsDBHandler) SelectEmbeddingHistory(entityID uuid.UUID, modelID string) ([]*model.EmbeddingRecord, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_embedding_history($1, $2)`,
		entityID,
		modelID,
	)
	if err != nil {
		return nil, wrapDBError("query", err)
	}
	defer rows.Close()

	var records []*model.EmbeddingRecord
	for rows.Next() {
		record := &model.EmbeddingRecord{}
		err := scanEmbedding(rows, record)
		if err != nil {
			return nil, wrapDBError("scan", err)
		}

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, wrapDBError("rows error", err)
	}

	return records, nil
}

// SelectSimilar runs a cosine similarity search over the current vectors of
// active entities under a model, descending similarity, ties broken by
// ascending entity ID.
func (h *EmbeddingsDBHandler) SelectSimilar(ctx context.Context, query []float32, modelID string, topK int, minSimilarity float64) ([]*model.SimilarityMatch, error) {
	return h.selectSimilar(ctx, query, modelID, topK, minSimilarity, nil)
}

// SelectSimilarToEntity searches for the entities most similar to an
// existing entity's current vector, excluding the entity itself. Returns
// helper.ErrNotFound when the entity has no current embedding.
func (h *EmbeddingsDBHandler) SelectSimilarToEntity(ctx context.Context, entityID uuid.UUID, modelID string, topK int, minSimilarity float64) ([]*model.SimilarityMatch, error) {
	record, err := h.SelectCurrentEmbedding(entityID, modelID)
	if err != nil {
		return nil, err
	}
	return h.selectSimilar(ctx, record.Vector, modelID, topK, minSimilarity, &entityID)
}

func (h *EmbeddingsDBHandler) selectSimilar(ctx context.Context, query []float32, modelID string, topK int, minSimilarity float64, exclude *uuid.UUID) ([]*model.SimilarityMatch, error) {
	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDBError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	// SET LOCAL scopes the probe count to this transaction only.
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`SET LOCAL ivfflat.probes = %d`, h.config.Probes))
	if err != nil {
		return nil, wrapDBError("set probes", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT * FROM select_similar_embeddings($1, $2, $3, $4, $5)`,
		pgvector.NewVector(query),
		modelID,
		topK,
		minSimilarity,
		exclude,
	)
	if err != nil {
		return nil, wrapDBError("query", err)
	}
	defer rows.Close()

	var matches []*model.SimilarityMatch
	for rows.Next() {
		match := &model.SimilarityMatch{}
		err := rows.Scan(&match.EntityID, &match.Similarity)
		if err != nil {
			return nil, wrapDBError("scan", err)
		}

		matches = append(matches, match)
	}

	err = rows.Err()
	if err != nil {
		return nil, wrapDBError("rows error", err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, wrapDBError("commit", err)
	}

	return matches, nil
}

// HasCurrentEmbedding reports whether an entity has a current vector under
// any model.
func (h *EmbeddingsDBHandler) HasCurrentEmbedding(entityID uuid.UUID) (bool, error) {
	var has bool
	row := h.db.Instance.QueryRow(
		`SELECT has_current_embedding($1)`,
		entityID,
	)

	err := row.Scan(&has)
	if err != nil {
		return false, wrapDBError("scan", err)
	}

	return has, nil
}

func scanEmbedding(row rowScanner, record *model.EmbeddingRecord) error {
	var vec pgvector.Vector
	err := row.Scan(
		&record.ID,
		&record.EntityID,
		&record.ModelID,
		&vec,
		&record.Version,
		&record.IsCurrent,
		&record.CreatedAt,
	)
	if err != nil {
		return err
	}
	record.Vector = vec.Slice()
	return nil
}
