package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sitegraph/sitegraph/helper"
)

// SQLSTATE raised by upsert_embedding and register_embedding_model for
// vector/model dimension conflicts.
const sqlstateDimensionMismatch = "SG001"

// wrapDBError maps driver-level errors onto the typed sentinel errors so
// callers can match them with errors.Is. Anything unrecognized is wrapped
// as-is.
func wrapDBError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return helper.NewError(operation, helper.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "P0002": // no_data_found, raised for missing/inactive rows
			return helper.NewError(operation, fmt.Errorf("%w: %s", helper.ErrNotFound, pqErr.Message))
		case sqlstateDimensionMismatch:
			return helper.NewError(operation, fmt.Errorf("%w: %s", helper.ErrDimensionMismatch, pqErr.Message))
		case "23505": // unique_violation, only reachable via the active-duplicate edge index
			return helper.NewError(operation, fmt.Errorf("%w: %s", helper.ErrDuplicateEdge, pqErr.Message))
		case "23514": // check_violation
			return helper.NewError(operation, fmt.Errorf("%w: %s", helper.ErrValidation, pqErr.Message))
		case "22P02": // invalid_text_representation, e.g. unknown relationship type
			return helper.NewError(operation, fmt.Errorf("%w: %s", helper.ErrValidation, pqErr.Message))
		}
	}

	return helper.NewError(operation, err)
}
