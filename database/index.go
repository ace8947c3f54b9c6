package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sitegraph/sitegraph/helper"
)

// ReindexNow rebuilds the IVFFlat index of every registered model,
// recomputing the centroid clusters from the current data distribution.
// Index builds can take a while on large corpora.
func (h *EmbeddingsDBHandler) ReindexNow(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	rows, err := h.db.Instance.QueryContext(ctx, `SELECT model_id, dimension FROM embedding_models;`)
	if err != nil {
		return wrapDBError("query models", err)
	}
	defer rows.Close()

	var modelIDs []string
	for rows.Next() {
		var modelID string
		var dimension int
		err := rows.Scan(&modelID, &dimension)
		if err != nil {
			return wrapDBError("scan", err)
		}
		h.dimensions.Store(modelID, dimension)
		modelIDs = append(modelIDs, modelID)
	}
	err = rows.Err()
	if err != nil {
		return wrapDBError("rows error", err)
	}

	for _, modelID := range modelIDs {
		_, err := h.db.Instance.ExecContext(ctx,
			`SELECT ensure_model_index($1, $2)`,
			modelID,
			h.config.Lists,
		)
		if err != nil {
			return helper.NewError("reindex", fmt.Errorf("model %s: %w", modelID, err))
		}

		h.db.Logger.Info(fmt.Sprintf("Rebuilt similarity index for model %s with lists = %d", modelID, h.config.Lists))
	}

	h.insertCount.Store(0)

	return nil
}

// MaybeReindex rebuilds the similarity indexes when the number of inserts
// since the last rebuild has reached the configured threshold. Returns
// whether a rebuild ran.
func (h *EmbeddingsDBHandler) MaybeReindex(ctx context.Context) (bool, error) {
	if h.config.ReindexThreshold <= 0 {
		return false, nil
	}
	if h.insertCount.Load() < int64(h.config.ReindexThreshold) {
		return false, nil
	}

	err := h.ReindexNow(ctx)
	if err != nil {
		return false, err
	}

	return true, nil
}

// InsertsSinceReindex returns the number of upserts since the last index
// rebuild.
func (h *EmbeddingsDBHandler) InsertsSinceReindex() int64 {
	return h.insertCount.Load()
}
