package driven

import (
	"context"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
)

// ChatRequest is one grounded generation request.
type ChatRequest struct {
	// System is the assembled instruction payload (guardrails, role
	// instructions, context block).
	System string

	// Messages is the caller-supplied conversation, user question last.
	Messages []domain.ChatMessage

	// Temperature is role-conditioned by the caller.
	Temperature float32
}

// ChatEvent is one tagged read from a generation stream. Exactly one of
// Delta or Done is meaningful per event.
type ChatEvent struct {
	Delta string
	Done  bool
}

// ChatStream is a bounded consumption handle over provider output.
type ChatStream interface {
	// Next returns the next event. A Done event signals clean provider
	// completion; any error means the stream ended abnormally.
	Next() (ChatEvent, error)

	// Close releases the underlying provider reader. Safe to call more
	// than once; the reader is released exactly once.
	Close() error
}

// ChatService streams answers from a large language model provider
type ChatService interface {
	// StreamChat opens a generation stream. The caller owns the returned
	// stream and must Close it on every exit path.
	StreamChat(ctx context.Context, req ChatRequest) (ChatStream, error)

	// Model returns the model name being used
	Model() string

	// Close releases resources held by the chat service
	Close() error
}
