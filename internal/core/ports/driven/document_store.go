package driven

import (
	"context"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
)

// DocumentStore persists document metadata
type DocumentStore interface {
	// Save stores a document record. Called once per successful ingestion.
	Save(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID (session ID).
	// Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// Delete removes a document record and its fragments. Used to
	// compensate a failed ingestion; idempotent on missing ids.
	Delete(ctx context.Context, id string) error
}
