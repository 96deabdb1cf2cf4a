package http

import (
	"encoding/json"
	"net/http"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
	"github.com/custodia-labs/ansa-core/internal/core/ports/driven"
	"github.com/custodia-labs/ansa-core/internal/normalisers"
)

// streamDelimiter separates the JSON metadata prefix from generated text.
const streamDelimiter = "\n---\n"

// streamErrorMarker is emitted in-band when generation fails after the
// stream has started; the transport itself always terminates cleanly.
const streamErrorMarker = "\n\n[STREAM_ERROR]\n"

// streamMetadata is the JSON prefix of every streamed answer.
type streamMetadata struct {
	Sources []domain.SourceRef `json:"sources"`
}

// streamAnswer relays generated tokens to the client, prefixed by the
// retrieval metadata. Once the prefix is written the response status is
// committed; every later failure becomes the in-band error marker.
func (s *Server) streamAnswer(
	w http.ResponseWriter,
	r *http.Request,
	chatService driven.ChatService,
	results []domain.RetrievalResult,
	system string,
	role domain.AnswerRole,
	messages []domain.ChatMessage,
) {
	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Metadata prefix goes out before any generated byte, so the client
	// can always parse sources even if generation never produces output.
	prefix, err := json.Marshal(streamMetadata{Sources: sourceRefs(results)})
	if err != nil {
		s.logger.Error("stream metadata marshal failed",
			"request_id", GetRequestID(r.Context()), "error", err)
		return
	}
	_, _ = w.Write(prefix)
	_, _ = w.Write([]byte(streamDelimiter))
	flush()

	stream, err := chatService.StreamChat(r.Context(), driven.ChatRequest{
		System:      system,
		Messages:    sanitizeMessages(messages),
		Temperature: role.Temperature(),
	})
	if err != nil {
		s.logger.Error("generation stream open failed",
			"request_id", GetRequestID(r.Context()), "error", err)
		_, _ = w.Write([]byte(streamErrorMarker))
		flush()
		return
	}
	// The stream's Close is idempotent; the single deferred call is the
	// one release point for every exit path below.
	defer func() { _ = stream.Close() }()

	for {
		event, err := stream.Next()
		if err != nil {
			// Client disconnects land here too, in which case the marker
			// write is a no-op on a dead connection.
			s.logger.Warn("generation stream interrupted",
				"request_id", GetRequestID(r.Context()), "error", err)
			_, _ = w.Write([]byte(streamErrorMarker))
			flush()
			return
		}
		if event.Done {
			return
		}
		if event.Delta != "" {
			_, _ = w.Write([]byte(event.Delta))
			flush()
		}
	}
}

// sanitizeMessages normalises caller-supplied message text before it is
// forwarded to the provider.
func sanitizeMessages(messages []domain.ChatMessage) []domain.ChatMessage {
	n := normalisers.NewTextNormaliser()
	out := make([]domain.ChatMessage, len(messages))
	for i, m := range messages {
		out[i] = domain.ChatMessage{Role: m.Role, Content: n.Normalise(m.Content)}
	}
	return out
}
