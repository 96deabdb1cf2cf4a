package driving

import (
	"github.com/custodia-labs/ansa-core/internal/core/domain"
)

// ContextBuilder assembles the grounding instruction payload from ranked
// fragments. Pure transformation, no I/O.
type ContextBuilder interface {
	// Build returns the full instruction payload for the given role. An
	// empty fragment list yields a fixed no-context message.
	Build(results []domain.RetrievalResult, role domain.AnswerRole) string
}
