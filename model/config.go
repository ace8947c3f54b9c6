package model

// SearchConfig represents configuration for a hybrid retrieval query.
// TextQuery and EmbeddingQuery are both optional; a signal that is absent
// has its weight removed and the remaining weights renormalized so they
// sum to 1.0 again.
type SearchConfig struct {
	// Query signals
	TextQuery      string    `json:"text_query,omitempty"`
	EmbeddingQuery []float32 `json:"embedding_query,omitempty"`
	ModelID        string    `json:"model_id,omitempty"` // Required when EmbeddingQuery is set

	// Candidate filtering
	EntityType *EntityType `json:"entity_type,omitempty"` // Filter by entity type
	MinQuality float64     `json:"min_quality"`           // Exclude entities below this quality score
	MaxResults int         `json:"max_results"`

	// Vector search parameters
	TopK          int     `json:"top_k"`
	MinSimilarity float64 `json:"min_similarity,omitempty"`

	// Graph expansion ("GraphRAG"): when ExpandHops > 0 the engine appends
	// graph context around the top-ranked results via the traversal engine.
	ExpandHops  int               `json:"expand_hops,omitempty"`
	ExpandTypes []RelationshipType `json:"expand_types,omitempty"`

	// Ranking weights
	TextWeight    float64 `json:"text_weight"`    // Weight for lexical rank
	VectorWeight  float64 `json:"vector_weight"`  // Weight for cosine similarity
	QualityWeight float64 `json:"quality_weight"` // Weight for entity quality score
}

// DefaultSearchConfig returns a sensible default configuration
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		MinQuality:    0.0,
		MaxResults:    10,
		TopK:          20,
		MinSimilarity: 0.0,
		ExpandHops:    0,
		TextWeight:    0.3,
		VectorWeight:  0.5,
		QualityWeight: 0.2,
	}
}

// TraversalConfig bounds a multi-hop graph walk.
type TraversalConfig struct {
	MaxHops    int               `json:"max_hops"`
	TypeFilter *RelationshipType `json:"type_filter,omitempty"`
	// MaxVisited is the hard node-visit cap; exceeding it truncates the
	// result instead of failing.
	MaxVisited int `json:"max_visited"`
}

// DefaultTraversalConfig returns a sensible default configuration
func DefaultTraversalConfig() TraversalConfig {
	return TraversalConfig{
		MaxHops:    2,
		MaxVisited: 10000,
	}
}

// IndexConfig tunes the IVFFlat similarity index: Lists is the number of
// centroid clusters built at index time, Probes the number of clusters
// scanned per query (recall vs. latency trade-off). ReindexThreshold is the
// number of inserts after which MaybeReindex recomputes the centroids.
type IndexConfig struct {
	Lists            int `json:"lists"`
	Probes           int `json:"probes"`
	ReindexThreshold int `json:"reindex_threshold"`
}

// DefaultIndexConfig returns index parameters sized for small-to-medium
// corpora; size Lists up with corpus volume.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		Lists:            100,
		Probes:           10,
		ReindexThreshold: 1000,
	}
}
