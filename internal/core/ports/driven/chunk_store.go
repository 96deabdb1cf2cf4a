package driven

import (
	"context"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
)

// ChunkStore persists fragments with their embeddings and exposes the
// similarity search the vector store scores and orders itself.
type ChunkStore interface {
	// SaveBatch persists chunks transactionally. Inconsistent embedding
	// dimensions across the batch fail before any row is written.
	SaveBatch(ctx context.Context, chunks []*domain.Chunk) error

	// MatchChunks runs the store's similarity search scoped to one
	// document session. Results arrive ordered by similarity descending;
	// the caller does not re-sort them.
	MatchChunks(ctx context.Context, embedding []float32, sessionID string, threshold float64, count int) ([]domain.RetrievalResult, error)
}
