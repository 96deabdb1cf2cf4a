package driving

import (
	"context"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
)

// RetrievalService answers "what does the document say about this" with a
// ranked, size-bounded set of fragments plus the sufficiency verdict.
type RetrievalService interface {
	// Retrieve embeds the question and runs the adaptive two-tier search
	// against the session's fragments. It always returns what it found;
	// the outcome carries the acceptance verdict.
	Retrieve(ctx context.Context, sessionID, question string) (*domain.RetrievalOutcome, error)
}
