package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
)

func strongOutcome() *domain.RetrievalOutcome {
	return &domain.RetrievalOutcome{
		Results: []domain.RetrievalResult{
			{ChunkID: "c0", Content: "First fragment from page one.", Page: 1, Similarity: 0.6},
			{ChunkID: "c1", Content: "Second fragment from page one.", Page: 1, Similarity: 0.5},
			{ChunkID: "c2", Content: "Fragment from page two.", Page: 2, Similarity: 0.45},
		},
		TopSimilarity: 0.6,
		Sufficient:    true,
	}
}

// splitStream separates the metadata prefix from the generated text.
func splitStream(t *testing.T, body string) (streamMetadata, string) {
	t.Helper()
	idx := strings.Index(body, streamDelimiter)
	if idx < 0 {
		t.Fatalf("no delimiter in stream: %q", body)
	}
	var meta streamMetadata
	if err := json.Unmarshal([]byte(body[:idx]), &meta); err != nil {
		t.Fatalf("metadata prefix is not valid JSON: %v", err)
	}
	return meta, body[idx+len(streamDelimiter):]
}

func TestStream_ContractHappyPath(t *testing.T) {
	env := newTestEnv(t)
	sessionDoc(t, env, "session-1")
	env.retrieval.outcome = strongOutcome()
	env.chat.ScriptDeltas("The document ", "covers warranties ", "(page 1).")

	rec := env.do(queryRequest(t, domain.QueryRequest{
		SessionID: "session-1",
		Messages:  []domain.ChatMessage{{Role: "user", Content: "what does it cover?"}},
		Role:      "strict",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing correlation id header")
	}

	meta, text := splitStream(t, rec.Body.String())

	pages := make([]int, len(meta.Sources))
	for i, src := range meta.Sources {
		pages[i] = src.Page
		if src.Similarity <= 0 || src.Similarity > 1 {
			t.Errorf("source %d similarity = %f", i, src.Similarity)
		}
		if len(src.Excerpt) > excerptLimit {
			t.Errorf("source %d excerpt too long: %d", i, len(src.Excerpt))
		}
	}
	if len(pages) != 3 || pages[0] != 1 || pages[1] != 1 || pages[2] != 2 {
		t.Errorf("source pages = %v, want [1 1 2]", pages)
	}

	if text != "The document covers warranties (page 1)." {
		t.Errorf("generated text = %q", text)
	}
	if strings.Contains(text, strings.TrimSpace(streamErrorMarker)) {
		t.Error("clean stream must not carry the error marker")
	}

	// The provider request carries the assembled instructions and the
	// role temperature.
	req := env.chat.LastRequest()
	if !strings.Contains(req.System, domain.InsufficientContextAnswer) {
		t.Error("system payload missing guardrails")
	}
	if req.Temperature != domain.RoleStrict.Temperature() {
		t.Errorf("temperature = %f", req.Temperature)
	}

	if got := env.chat.Stream().CloseCount(); got != 1 {
		t.Errorf("stream closed %d times, want exactly 1", got)
	}
}

func TestStream_MidStreamFailure(t *testing.T) {
	env := newTestEnv(t)
	sessionDoc(t, env, "session-1")
	env.retrieval.outcome = strongOutcome()
	env.chat.ScriptFailureAfter(errors.New("provider reset"), "The docum")

	rec := env.do(queryRequest(t, domain.QueryRequest{
		SessionID: "session-1",
		Messages:  []domain.ChatMessage{{Role: "user", Content: "what does it say?"}},
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; stream failures must not change the status", rec.Code)
	}

	_, text := splitStream(t, rec.Body.String())
	want := "The docum" + streamErrorMarker
	if text != want {
		t.Errorf("stream tail = %q, want %q", text, want)
	}

	if got := env.chat.Stream().CloseCount(); got != 1 {
		t.Errorf("stream closed %d times, want exactly 1", got)
	}
}

func TestStream_OpenFailureEmitsMarker(t *testing.T) {
	env := newTestEnv(t)
	sessionDoc(t, env, "session-1")
	env.retrieval.outcome = strongOutcome()
	env.chat.SetOpenError(errors.New("connection refused"))

	rec := env.do(queryRequest(t, domain.QueryRequest{
		SessionID: "session-1",
		Messages:  []domain.ChatMessage{{Role: "user", Content: "anything"}},
	}))

	meta, text := splitStream(t, rec.Body.String())
	if len(meta.Sources) != 3 {
		t.Errorf("metadata prefix must still be written, got %d sources", len(meta.Sources))
	}
	if text != streamErrorMarker {
		t.Errorf("stream tail = %q, want bare error marker", text)
	}
}

func TestStream_NoChatServiceIs503(t *testing.T) {
	env := newTestEnv(t)
	sessionDoc(t, env, "session-1")
	env.retrieval.outcome = strongOutcome()
	env.server.services.SetChatService(nil)

	rec := env.do(queryRequest(t, domain.QueryRequest{
		SessionID: "session-1",
		Messages:  []domain.ChatMessage{{Role: "user", Content: "anything"}},
	}))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
