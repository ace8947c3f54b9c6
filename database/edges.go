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

// EdgesDBHandlerFunctions defines the interface for relationship graph operations.
type EdgesDBHandlerFunctions interface {
	InsertEdge(edge *model.RelationshipEdge) error
	SoftDeleteEdge(id uuid.UUID) error
	SelectEdge(id uuid.UUID) (*model.RelationshipEdge, error)
	SelectEdgesForEntity(entityID uuid.UUID, direction model.Direction, typeFilter *model.RelationshipType) ([]*model.RelationshipEdge, error)
	CountActiveRelationships(entityID uuid.UUID) (int, error)
}

// EdgesDBHandler handles relationship graph database operations
type EdgesDBHandler struct {
	db *helper.Database
}

// NewEdgesDBHandler creates a new edges database handler.
// It initializes the database connection and loads edge-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEdgesDBHandler(db *helper.Database, force bool) (*EdgesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	edgesDbHandler := &EdgesDBHandler{
		db: db,
	}

	err := sql.LoadEdgesSql(edgesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load edges sql", err)
	}

	err = edgesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EdgesDBHandler")

	return edgesDbHandler, nil
}

// CreateTable creates the 'edges' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EdgesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_edges();`)
	if err != nil {
		log.Panicf("error initializing edges table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table edges")

	return nil
}

// InsertEdge inserts a new directed edge and fills in the generated fields
// on the given struct. Both endpoints must be active entities; self-loops
// and exact active duplicates of (source, target, type) are rejected.
func (h *EdgesDBHandler) InsertEdge(edge *model.RelationshipEdge) error {
	if edge.SourceEntityID == edge.TargetEntityID {
		return helper.NewError("edge validation",
			fmt.Errorf("%w: self-loop edge %v", helper.ErrValidation, edge.SourceEntityID))
	}
	if edge.Strength < 0 || edge.Strength > 1 {
		return helper.NewError("edge validation",
			fmt.Errorf("%w: strength %v", helper.ErrInvalidWeight, edge.Strength))
	}
	if edge.Confidence < 0 || edge.Confidence > 1 {
		return helper.NewError("edge validation",
			fmt.Errorf("%w: confidence %v", helper.ErrInvalidWeight, edge.Confidence))
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_edge($1, $2, $3, $4, $5, $6)`,
		edge.SourceEntityID,
		edge.TargetEntityID,
		string(edge.Type),
		edge.Strength,
		edge.Confidence,
		edge.Metadata,
	)

	err := scanEdge(row, edge)
	if err != nil {
		return wrapDBError("scan", err)
	}

	return nil
}

// SoftDeleteEdge deactivates an edge. The row stays queryable for audit.
func (h *EdgesDBHandler) SoftDeleteEdge(id uuid.UUID) error {
	var found bool
	row := h.db.Instance.QueryRow(
		`SELECT soft_delete_edge($1)`,
		id,
	)

	err := row.Scan(&found)
	if err != nil {
		return wrapDBError("scan", err)
	}
	if !found {
		return helper.NewError("soft delete edge", helper.ErrNotFound)
	}

	return nil
}

// SelectEdge retrieves an edge by ID, active or not.
func (h *EdgesDBHandler) SelectEdge(id uuid.UUID) (*model.RelationshipEdge, error) {
	edge := &model.RelationshipEdge{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_edge($1)`,
		id,
	)

	err := scanEdge(row, edge)
	if err != nil {
		return nil, wrapDBError("scan", err)
	}

	return edge, nil
}

// SelectEdgesForEntity retrieves the active edges touching an entity in the
// given direction, optionally filtered by relationship type. Edges come back
// ordered by descending strength, ties broken by ascending target ID.
func (h *EdgesDBHandler) SelectEdgesForEntity(entityID uuid.UUID, direction model.Direction, typeFilter *model.RelationshipType) ([]*model.RelationshipEdge, error) {
	if direction == "" {
		direction = model.DirectionBoth
	}

	var typeArg *string
	if typeFilter != nil {
		s := string(*typeFilter)
		typeArg = &s
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_edges_for_entity($1, $2, $3)`,
		entityID,
		string(direction),
		typeArg,
	)
	if err != nil {
		return nil, wrapDBError("query", err)
	}
	defer rows.Close()

	var edges []*model.RelationshipEdge
	for rows.Next() {
		edge := &model.RelationshipEdge{}
		err := scanEdge(rows, edge)
		if err != nil {
			return nil, wrapDBError("scan", err)
		}

		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, wrapDBError("rows error", err)
	}

	return edges, nil
}

// CountActiveRelationships counts the active edges touching an entity in
// either direction. Feeds the quality scorer's relationship term.
func (h *EdgesDBHandler) CountActiveRelationships(entityID uuid.UUID) (int, error) {
	var count int
	row := h.db.Instance.QueryRow(
		`SELECT count_active_relationships($1)`,
		entityID,
	)

	err := row.Scan(&count)
	if err != nil {
		return 0, wrapDBError("scan", err)
	}

	return count, nil
}

func scanEdge(row rowScanner, edge *model.RelationshipEdge) error {
	return row.Scan(
		&edge.ID,
		&edge.SourceEntityID,
		&edge.TargetEntityID,
		&edge.Type,
		&edge.Strength,
		&edge.Confidence,
		&edge.Metadata,
		&edge.IsActive,
		&edge.CreatedAt,
	)
}
