package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sitegraph/sitegraph/helper"
	"github.com/sitegraph/sitegraph/model"
	"github.com/sitegraph/sitegraph/sql"
)

// EntitiesDBHandlerFunctions defines the interface for entity registry operations.
type EntitiesDBHandlerFunctions interface {
	RegisterEntity(entity *model.Entity) error
	SelectEntity(id uuid.UUID) (*model.Entity, error)
	SelectEntityByName(name string, entityType model.EntityType) (*model.Entity, error)
	EntitiesByType(entityType model.EntityType, batchSize int) *EntityIterator
	DeactivateEntity(id uuid.UUID) error
	UpdateEntityAttributes(id uuid.UUID, attributes model.Metadata) error
	UpdateEntityQuality(id uuid.UUID, score float64) error
	SearchEntitiesByText(query string, entityType *model.EntityType, minQuality float64, limit int) ([]*TextMatch, error)
}

// TextMatch is one lexical search hit with its normalized rank in [0,1).
type TextMatch struct {
	Entity   *model.Entity
	TextRank float64
}

// EntitiesDBHandler handles entity registry database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It initializes the database connection and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := sql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// RegisterEntity inserts a new entity and fills in the generated fields
// (ID, timestamps, defaults) on the given struct.
func (h *EntitiesDBHandler) RegisterEntity(entity *model.Entity) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_entity($1, $2, $3, $4, $5)`,
		string(entity.Type),
		entity.CanonicalName,
		entity.Owner.Kind,
		entity.Owner.Ref,
		entity.Attributes,
	)

	err := scanEntity(row, entity)
	if err != nil {
		return wrapDBError("scan", err)
	}

	return nil
}

// SelectEntity retrieves an entity by ID, active or not.
func (h *EntitiesDBHandler) SelectEntity(id uuid.UUID) (*model.Entity, error) {
	entity := &model.Entity{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity($1)`,
		id,
	)

	err := scanEntity(row, entity)
	if err != nil {
		return nil, wrapDBError("scan", err)
	}

	return entity, nil
}

// SelectEntityByName retrieves the oldest active entity with the given
// canonical name and type.
func (h *EntitiesDBHandler) SelectEntityByName(name string, entityType model.EntityType) (*model.Entity, error) {
	entity := &model.Entity{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity_by_name($1, $2)`,
		name,
		string(entityType),
	)

	err := scanEntity(row, entity)
	if err != nil {
		return nil, wrapDBError("scan", err)
	}

	return entity, nil
}

// DeactivateEntity soft-deletes an entity. The row and its embedding and
// edge history stay queryable.
func (h *EntitiesDBHandler) DeactivateEntity(id uuid.UUID) error {
	var found bool
	row := h.db.Instance.QueryRow(
		`SELECT deactivate_entity($1)`,
		id,
	)

	err := row.Scan(&found)
	if err != nil {
		return wrapDBError("scan", err)
	}
	if !found {
		return helper.NewError("deactivate entity", helper.ErrNotFound)
	}

	return nil
}

// UpdateEntityAttributes replaces the attribute map of an active entity.
func (h *EntitiesDBHandler) UpdateEntityAttributes(id uuid.UUID, attributes model.Metadata) error {
	var found bool
	row := h.db.Instance.QueryRow(
		`SELECT update_entity_attributes($1, $2)`,
		id,
		attributes,
	)

	err := row.Scan(&found)
	if err != nil {
		return wrapDBError("scan", err)
	}
	if !found {
		return helper.NewError("update entity attributes", helper.ErrNotFound)
	}

	return nil
}

// UpdateEntityQuality writes a recomputed quality score. The score is
// derived by the quality scorer, never hand-edited.
func (h *EntitiesDBHandler) UpdateEntityQuality(id uuid.UUID, score float64) error {
	if score < 0 || score > 1 {
		return helper.NewError("quality validation", fmt.Errorf("%w: score %v", helper.ErrInvalidWeight, score))
	}

	var found bool
	row := h.db.Instance.QueryRow(
		`SELECT update_entity_quality($1, $2)`,
		id,
		score,
	)

	err := row.Scan(&found)
	if err != nil {
		return wrapDBError("scan", err)
	}
	if !found {
		return helper.NewError("update entity quality", helper.ErrNotFound)
	}

	return nil
}

// SearchEntitiesByText ranks active entities by lexical match of their
// canonical name against the query, using the stronger of full-text rank
// and trigram similarity.
func (h *EntitiesDBHandler) SearchEntitiesByText(query string, entityType *model.EntityType, minQuality float64, limit int) ([]*TextMatch, error) {
	var typeArg *string
	if entityType != nil {
		s := string(*entityType)
		typeArg = &s
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM search_entities_by_text($1, $2, $3, $4)`,
		query,
		typeArg,
		minQuality,
		limit,
	)
	if err != nil {
		return nil, wrapDBError("query", err)
	}
	defer rows.Close()

	var matches []*TextMatch
	for rows.Next() {
		match := &TextMatch{Entity: &model.Entity{}}
		err := rows.Scan(
			&match.Entity.ID,
			&match.Entity.Type,
			&match.Entity.CanonicalName,
			&match.Entity.Owner.Kind,
			&match.Entity.Owner.Ref,
			&match.Entity.Attributes,
			&match.Entity.QualityScore,
			&match.Entity.IsActive,
			&match.Entity.CreatedAt,
			&match.Entity.UpdatedAt,
			&match.TextRank,
		)
		if err != nil {
			return nil, wrapDBError("scan", err)
		}

		matches = append(matches, match)
	}

	err = rows.Err()
	if err != nil {
		return nil, wrapDBError("rows error", err)
	}

	return matches, nil
}

// EntitiesByType returns a lazy iterator over all active entities of a type,
// fetched in keyset-paginated batches in ascending ID order.
func (h *EntitiesDBHandler) EntitiesByType(entityType model.EntityType, batchSize int) *EntityIterator {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &EntityIterator{
		handler:    h,
		entityType: entityType,
		batchSize:  batchSize,
	}
}

// EntityIterator pages through entities of one type. It is restartable via
// Reset and safe against concurrent writers in the sense that each batch
// reflects the state at fetch time.
type EntityIterator struct {
	handler    *EntitiesDBHandler
	entityType model.EntityType
	batchSize  int

	after   *uuid.UUID
	buffer  []*model.Entity
	index   int
	done    bool
	lastErr error
}

// Next advances the iterator and reports whether another entity is
// available. It fetches the next batch on demand.
func (it *EntityIterator) Next() bool {
	if it.lastErr != nil {
		return false
	}
	if it.index < len(it.buffer) {
		return true
	}
	if it.done {
		return false
	}

	batch, err := it.handler.selectEntitiesByTypePage(it.entityType, it.after, it.batchSize)
	if err != nil {
		it.lastErr = err
		return false
	}
	if len(batch) == 0 {
		it.done = true
		return false
	}
	if len(batch) < it.batchSize {
		it.done = true
	}

	last := batch[len(batch)-1].ID
	it.after = &last
	it.buffer = batch
	it.index = 0
	return true
}

// Entity returns the current entity and advances past it. Only valid after
// Next returned true.
func (it *EntityIterator) Entity() *model.Entity {
	entity := it.buffer[it.index]
	it.index++
	return entity
}

// Err returns the first error hit while iterating.
func (it *EntityIterator) Err() error {
	return it.lastErr
}

// Reset rewinds the iterator to the beginning.
func (it *EntityIterator) Reset() {
	it.after = nil
	it.buffer = nil
	it.index = 0
	it.done = false
	it.lastErr = nil
}

func (h *EntitiesDBHandler) selectEntitiesByTypePage(entityType model.EntityType, after *uuid.UUID, limit int) ([]*model.Entity, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_entities_by_type($1, $2, $3)`,
		string(entityType),
		after,
		limit,
	)
	if err != nil {
		return nil, wrapDBError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		err := scanEntity(rows, entity)
		if err != nil {
			return nil, wrapDBError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, wrapDBError("rows error", err)
	}

	return entities, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner, entity *model.Entity) error {
	return row.Scan(
		&entity.ID,
		&entity.Type,
		&entity.CanonicalName,
		&entity.Owner.Kind,
		&entity.Owner.Ref,
		&entity.Attributes,
		&entity.QualityScore,
		&entity.IsActive,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
}
