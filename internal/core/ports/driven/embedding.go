package driven

import (
	"context"
)

// EmbeddingService generates text embeddings
type EmbeddingService interface {
	// EmbedQuery generates an embedding for a live question. The call is
	// raced against a hard timeout; expiry or caller cancellation surfaces
	// as domain.ErrUpstreamTimeout.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// EmbedBatch generates embeddings for ingestion. Input order is
	// preserved in the output regardless of internal concurrency, and the
	// whole call fails rather than silently dropping inputs.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension size
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// Close releases resources held by the embedding service
	Close() error
}
