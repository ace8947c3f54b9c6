package model

import "github.com/google/uuid"

// SearchResult represents one entity returned by a hybrid query. TextRank
// and VectorSimilarity are nil when the corresponding signal was not part
// of the query, as opposed to zero when the signal applied but scored zero.
type SearchResult struct {
	Entity           *Entity  `json:"entity"`
	TextRank         *float64 `json:"text_rank,omitempty"`
	VectorSimilarity *float64 `json:"vector_similarity,omitempty"`
	QualityScore     float64  `json:"quality_score"`
	CombinedScore    float64  `json:"combined_score"`
	HopDistance      int      `json:"hop_distance"`      // 0 for direct hits, >0 for graph-expanded context
	RetrievalMethod  string   `json:"retrieval_method"`  // How it was retrieved (hybrid, text, vector, graph)
}

// SearchResponse is the ranked result list of a hybrid query. Truncated is
// set when the caller's deadline expired before ranking finished and the
// list is a partial best-effort answer.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Truncated bool            `json:"truncated"`
}

// TraversalNode is one entity reached by a graph walk, with the hop
// distance of its first (shortest) visit and the ordered relationship
// types along the path that reached it.
type TraversalNode struct {
	EntityID    uuid.UUID          `json:"entity_id"`
	HopDistance int                `json:"hop_distance"`
	Path        []RelationshipType `json:"path"`
}

// TraversalResult is the outcome of a bounded graph walk. Truncated is set
// when the node-visit cap or the caller's deadline cut the walk short.
type TraversalResult struct {
	Nodes     []*TraversalNode `json:"nodes"`
	Truncated bool             `json:"truncated"`
}

// QualityResult is the outcome of a quality-score recompute. Degraded is
// set when the completeness provider was unavailable and the score was
// computed with completeness 0.
type QualityResult struct {
	Score    float64 `json:"score"`
	Degraded bool    `json:"degraded"`
}
