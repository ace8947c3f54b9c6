package graph

import (
	"context"

	"github.com/google/uuid"
	"github.com/sitegraph/sitegraph/model"
)

// Store defines the interface for graph traversal data access.
type Store interface {
	// HasActiveEntity reports whether the entity exists and is active.
	HasActiveEntity(ctx context.Context, id uuid.UUID) (bool, error)
	// EdgesForEntity returns the active outgoing edges of the entity,
	// optionally filtered by type, ordered by descending strength then
	// ascending target ID.
	EdgesForEntity(ctx context.Context, id uuid.UUID, typeFilter *model.RelationshipType) ([]*model.RelationshipEdge, error)
}

type queueItem struct {
	id   uuid.UUID
	hop  int
	path []model.RelationshipType
}

// Traverse performs a bounded breadth-first walk from a start entity.
// Each reachable entity appears at most once, at its minimum hop distance,
// with the relationship types along the path that first reached it. The
// start entity itself is not part of the result.
//
// The walk is bounded three ways: MaxHops limits depth, MaxVisited caps the
// number of visited nodes, and the context deadline cuts long walks short.
// Hitting a cap or the deadline truncates the result instead of failing.
func Traverse(ctx context.Context, store Store, startID uuid.UUID, config model.TraversalConfig) (*model.TraversalResult, error) {
	result := &model.TraversalResult{Nodes: []*model.TraversalNode{}}

	if config.MaxHops <= 0 {
		return result, nil
	}
	if config.MaxVisited <= 0 {
		config.MaxVisited = model.DefaultTraversalConfig().MaxVisited
	}

	// A missing or inactive start entity yields an empty result, not an
	// error: graph context is best-effort.
	exists, err := store.HasActiveEntity(ctx, startID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return result, nil
	}

	visited := map[uuid.UUID]bool{startID: true}
	visitedCount := 1
	queue := []queueItem{{id: startID, hop: 0, path: []model.RelationshipType{}}}

	for len(queue) > 0 {
		// Deadline expiry returns the partial walk as truncated.
		if ctx.Err() != nil {
			result.Truncated = true
			return result, nil
		}

		current := queue[0]
		queue = queue[1:]

		if current.hop >= config.MaxHops {
			continue
		}

		edges, err := store.EdgesForEntity(ctx, current.id, config.TypeFilter)
		if err != nil {
			return nil, err
		}

		for _, edge := range edges {
			// Edges are directed; the walk only follows them source to
			// target.
			targetID := edge.TargetEntityID

			// Skip if already visited
			if visited[targetID] {
				continue
			}

			if visitedCount >= config.MaxVisited {
				result.Truncated = true
				return result, nil
			}

			visited[targetID] = true
			visitedCount++

			newPath := make([]model.RelationshipType, len(current.path), len(current.path)+1)
			copy(newPath, current.path)
			newPath = append(newPath, edge.Type)

			result.Nodes = append(result.Nodes, &model.TraversalNode{
				EntityID:    targetID,
				HopDistance: current.hop + 1,
				Path:        newPath,
			})
			queue = append(queue, queueItem{
				id:   targetID,
				hop:  current.hop + 1,
				path: newPath,
			})
		}
	}

	return result, nil
}

// Neighbors retrieves the immediate (1-hop) neighborhood of an entity.
func Neighbors(ctx context.Context, store Store, entityID uuid.UUID, typeFilter *model.RelationshipType) ([]*model.TraversalNode, error) {
	config := model.TraversalConfig{
		MaxHops:    1,
		TypeFilter: typeFilter,
		MaxVisited: model.DefaultTraversalConfig().MaxVisited,
	}
	result, err := Traverse(ctx, store, entityID, config)
	if err != nil {
		return nil, err
	}
	return result.Nodes, nil
}
