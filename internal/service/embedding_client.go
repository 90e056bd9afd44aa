// Package service contains the business logic: feedback intake, the
// enrichment pipeline, semantic search, and the heuristic backfill.
package service

import "context"

// EmbeddingClient generates embedding vectors for text.
// Implemented by the OpenAI client.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}
