package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
)

// embeddingHandler answers each input with a vector whose first element
// encodes the input's length, so ordering is checkable end to end.
func embeddingHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input any `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var inputs []string
		switch v := req.Input.(type) {
		case string:
			inputs = []string{v}
		case []any:
			for _, item := range v {
				inputs = append(inputs, item.(string))
			}
		}

		type datum struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Data []datum `json:"data"`
		}{}
		for i, in := range inputs {
			resp.Data = append(resp.Data, datum{
				Index:     i,
				Embedding: []float32{float32(len(in)), 1, 0},
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func newTestEmbedding(t *testing.T, url string, mutate func(*EmbeddingConfig)) *OpenAIEmbedding {
	t.Helper()
	cfg := EmbeddingConfig{
		APIKey:           "test-key",
		BaseURL:          url,
		DisableNormalize: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewOpenAIEmbedding(cfg)
	if err != nil {
		t.Fatalf("NewOpenAIEmbedding: %v", err)
	}
	return e
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	srv := httptest.NewServer(embeddingHandler(t))
	defer srv.Close()

	e := newTestEmbedding(t, srv.URL, func(cfg *EmbeddingConfig) {
		cfg.BatchSize = 2
		cfg.MaxConcurrent = 3
	})

	texts := make([]string, 13)
	for i := range texts {
		texts[i] = fmt.Sprintf("%0*d", i+1, 0) // length i+1
	}

	vectors, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors for %d inputs", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if int(v[0]) != len(texts[i]) {
			t.Errorf("vector %d out of order: encodes length %d, want %d", i, int(v[0]), len(texts[i]))
		}
	}
}

func TestEmbedBatch_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	handler := embeddingHandler(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		handler(w, r)
	}))
	defer srv.Close()

	e := newTestEmbedding(t, srv.URL, nil)

	vectors, err := e.EmbedBatch(context.Background(), []string{"a", "bb"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors", len(vectors))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, saw %d", got)
	}
}

func TestEmbedBatch_ExhaustedRetriesFailWholeBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	e := newTestEmbedding(t, srv.URL, nil)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Errorf("expected ErrUpstreamFailure, got %v", err)
	}
}

func TestEmbedBatch_CountMismatchIsDataIntegrity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Two inputs, one vector back.
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,2,3]}]}`))
	}))
	defer srv.Close()

	e := newTestEmbedding(t, srv.URL, nil)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrDataIntegrity) {
		t.Errorf("expected ErrDataIntegrity, got %v", err)
	}
}

func TestEmbedQuery_FlatResponseShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[3,4]}`))
	}))
	defer srv.Close()

	e := newTestEmbedding(t, srv.URL, nil)

	v, err := e.EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(v) != 2 || v[0] != 3 {
		t.Errorf("unexpected vector: %v", v)
	}
}

func TestEmbedQuery_UnrecognisedShapeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"vectors":[[1,2]]}`))
	}))
	defer srv.Close()

	e := newTestEmbedding(t, srv.URL, nil)

	_, err := e.EmbedQuery(context.Background(), "hello")
	if !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Errorf("expected ErrUpstreamFailure, got %v", err)
	}
}

func TestEmbedQuery_TimeoutIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	e := newTestEmbedding(t, srv.URL, func(cfg *EmbeddingConfig) {
		cfg.QueryTimeout = 30 * time.Millisecond
	})

	_, err := e.EmbedQuery(context.Background(), "hello")
	if !errors.Is(err, domain.ErrUpstreamTimeout) {
		t.Errorf("expected ErrUpstreamTimeout, got %v", err)
	}
}

func TestEmbedQuery_CancellationIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	e := newTestEmbedding(t, srv.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := e.EmbedQuery(ctx, "hello")
	if !errors.Is(err, domain.ErrUpstreamTimeout) {
		t.Errorf("expected ErrUpstreamTimeout, got %v", err)
	}
}

func TestNormalizeVector(t *testing.T) {
	v := []float32{3, 4}
	normalizeVector(v)

	length := math.Sqrt(float64(v[0])*float64(v[0]) + float64(v[1])*float64(v[1]))
	if math.Abs(length-1) > 1e-6 {
		t.Errorf("normalised length = %f, want 1", length)
	}

	zero := []float32{0, 0}
	normalizeVector(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}
