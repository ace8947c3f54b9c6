package main

import (
	"context"
	"fmt"
	"log"

	sitegraph "github.com/sitegraph/sitegraph"
	"github.com/sitegraph/sitegraph/model"

	"github.com/sitegraph/sitegraph/helper"
)

// attributeChecklist scores completeness as the share of expected
// attributes an entity actually carries.
type attributeChecklist struct {
	expected map[model.EntityType][]string
}

func (c *attributeChecklist) Completeness(ctx context.Context, entity *model.Entity) (float64, error) {
	keys, ok := c.expected[entity.Type]
	if !ok || len(keys) == 0 {
		return 1.0, nil
	}

	present := 0
	for _, key := range keys {
		if _, ok := entity.Attributes[key]; ok {
			present++
		}
	}
	return float64(present) / float64(len(keys)), nil
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "sitegraph",
		Username: "sitegraph",
		Password: "sitegraph",
		Schema:   "public",
		SSLMode:  "disable",
	}

	provider := &attributeChecklist{
		expected: map[model.EntityType][]string{
			model.EntityTypeSurveyPoint: {"northing", "easting", "elevation"},
			model.EntityTypeLayer:       {"color", "linetype"},
		},
	}

	sg, err := sitegraph.NewSitegraph(dbConfig, model.DefaultIndexConfig(), provider)
	if err != nil {
		log.Fatalf("Failed to create sitegraph: %v", err)
	}
	defer sg.Close()

	// Register an embedding model. Vectors here are tiny toy embeddings;
	// use UseDefaultEmbedder() for real sentence transformer vectors.
	modelID := "toy-model"
	if _, err := sg.Embeddings.RegisterModel(modelID, 3); err != nil {
		log.Fatalf("Failed to register model: %v", err)
	}

	// Register a few entities
	fmt.Println("Registering entities...")
	points := []*model.Entity{
		{
			Type:          model.EntityTypeSurveyPoint,
			CanonicalName: "BM-101 benchmark",
			Owner:         model.OwnerRef{Kind: "survey", Ref: "job-2031"},
			Attributes: model.Metadata{
				"northing":  512034.2,
				"easting":   177612.9,
				"elevation": 14.6,
			},
		},
		{
			Type:          model.EntityTypeSurveyPoint,
			CanonicalName: "BM-102 benchmark",
			Owner:         model.OwnerRef{Kind: "survey", Ref: "job-2031"},
			Attributes: model.Metadata{
				"northing": 512101.7,
				"easting":  177630.4,
			},
		},
		{
			Type:          model.EntityTypeLayer,
			CanonicalName: "V-SURV-BNCH",
			Owner:         model.OwnerRef{Kind: "drawing", Ref: "site-plan-01"},
			Attributes: model.Metadata{
				"color":    "yellow",
				"linetype": "continuous",
			},
		},
	}
	for _, entity := range points {
		if err := sg.Register(entity); err != nil {
			log.Fatalf("Failed to register entity: %v", err)
		}
	}

	// Store embeddings
	ctx := context.Background()
	vectors := [][]float32{
		{0.9, 0.1, 0.0},
		{0.8, 0.2, 0.1},
		{0.0, 0.1, 0.9},
	}
	for i, entity := range points {
		if _, err := sg.UpsertEmbedding(ctx, entity.ID, modelID, vectors[i]); err != nil {
			log.Fatalf("Failed to upsert embedding: %v", err)
		}
	}

	// Relate the benchmarks to their layer
	for _, point := range points[:2] {
		edge := &model.RelationshipEdge{
			SourceEntityID: point.ID,
			TargetEntityID: points[2].ID,
			Type:           model.RelationshipTypeReference,
			Strength:       0.9,
			Confidence:     1.0,
		}
		if err := sg.AddEdge(edge); err != nil {
			log.Fatalf("Failed to add edge: %v", err)
		}
	}

	// Recompute quality synchronously so the search below sees the scores
	for _, entity := range points {
		result, err := sg.RecomputeQuality(ctx, entity.ID)
		if err != nil {
			log.Fatalf("Failed to recompute quality: %v", err)
		}
		fmt.Printf("Quality of %s: %.2f (degraded: %v)\n", entity.CanonicalName, result.Score, result.Degraded)
	}

	// Hybrid search: lexical + vector + quality
	config := model.DefaultSearchConfig()
	config.TextQuery = "benchmark"
	config.EmbeddingQuery = []float32{0.85, 0.15, 0.05}
	config.ModelID = modelID
	config.ExpandHops = 1

	response, err := sg.Search(ctx, config)
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}

	fmt.Printf("\nFound %d results:\n", len(response.Results))
	for i, result := range response.Results {
		fmt.Printf("\n--- Result %d ---\n", i+1)
		fmt.Printf("Entity: %s (%s)\n", result.Entity.CanonicalName, result.Entity.Type)
		fmt.Printf("Combined score: %.4f\n", result.CombinedScore)
		fmt.Printf("Method: %s (hops: %d)\n", result.RetrievalMethod, result.HopDistance)
	}

	// Multi-hop traversal from the first benchmark
	traversal, err := sg.Traverse(ctx, points[0].ID, model.DefaultTraversalConfig())
	if err != nil {
		log.Fatalf("Failed to traverse: %v", err)
	}
	fmt.Printf("\nTraversal reached %d entities (truncated: %v)\n", len(traversal.Nodes), traversal.Truncated)

	fmt.Println("\nBasic example completed successfully!")
}
