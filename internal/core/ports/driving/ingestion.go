package driving

import (
	"context"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
)

// IngestionService turns an uploaded file into a searchable document session
type IngestionService interface {
	// Ingest validates, chunks, embeds and persists an upload. On success
	// it returns the created document whose ID is the session ID.
	Ingest(ctx context.Context, upload domain.Upload) (*domain.Document, error)
}
