package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
	"github.com/custodia-labs/ansa-core/internal/core/ports/driven"
)

// Ensure OpenAIEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*OpenAIEmbedding)(nil)

// Model dimensions for OpenAI embedding models
var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// EmbeddingConfig configures the embedding client.
type EmbeddingConfig struct {
	APIKey  string
	Model   string
	BaseURL string

	// BatchSize is how many texts go into one service call. Default 16.
	BatchSize int

	// MaxConcurrent bounds how many batch calls are in flight. Default 3.
	MaxConcurrent int

	// MaxRetries is the per-group retry budget. Default 3.
	MaxRetries int

	// QueryTimeout races single-query embedding calls. Default 5s.
	QueryTimeout time.Duration

	// Normalize scales every vector to unit length so inner product
	// approximates cosine similarity. Default true; DisableNormalize
	// turns it off.
	DisableNormalize bool
}

// OpenAIEmbedding implements EmbeddingService against an OpenAI-compatible
// embeddings endpoint. Safe for concurrent use.
type OpenAIEmbedding struct {
	cfg        EmbeddingConfig
	dimensions int
	client     *http.Client
}

// NewOpenAIEmbedding creates a new embedding client.
func NewOpenAIEmbedding(cfg EmbeddingConfig) (*OpenAIEmbedding, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 5 * time.Second
	}

	dimensions, ok := openAIModelDimensions[cfg.Model]
	if !ok {
		// Default to 1536 for unknown models
		dimensions = 1536
	}

	return &OpenAIEmbedding{
		cfg:        cfg,
		dimensions: dimensions,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// embeddingRequest is the request body for the embeddings endpoint
type embeddingRequest struct {
	Input          interface{} `json:"input"` // string or []string
	Model          string      `json:"model"`
	EncodingFormat string      `json:"encoding_format,omitempty"`
}

// embeddingResponse is the nested (list) response shape
type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// flatEmbeddingResponse is the alternative single-input shape some
// services return: a bare vector instead of a one-element list.
type flatEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EmbedQuery generates an embedding for a live question. The service call
// races a hard timeout; expiry or caller cancellation surfaces as a typed
// domain.ErrUpstreamTimeout so the query layer can tell it apart from a
// service failure.
func (e *OpenAIEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
	defer cancel()

	body, err := e.doRequest(ctx, embeddingRequest{
		Input:          query,
		Model:          e.cfg.Model,
		EncodingFormat: "float",
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: query embedding: %v", domain.ErrUpstreamTimeout, err)
		}
		return nil, err
	}

	vector, err := decodeSingleVector(body)
	if err != nil {
		return nil, err
	}
	if !e.cfg.DisableNormalize {
		normalizeVector(vector)
	}
	return vector, nil
}

// EmbedBatch generates embeddings for ingestion. Input is partitioned into
// fixed-size groups processed with bounded concurrency; each group retries
// with exponential backoff plus jitter, and retry exhaustion fails the
// whole batch. Output order always equals input order.
func (e *OpenAIEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	type group struct {
		start int
		texts []string
	}

	var groups []group
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		groups = append(groups, group{start: start, texts: texts[start:end]})
	}

	out := make([][]float32, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)

	for _, grp := range groups {
		g.Go(func() error {
			vectors, err := e.embedGroup(ctx, grp.texts)
			if err != nil {
				return err
			}
			copy(out[grp.start:], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !e.cfg.DisableNormalize {
		for _, v := range out {
			normalizeVector(v)
		}
	}
	return out, nil
}

// embedGroup embeds one group with retries.
func (e *OpenAIEmbedding) embedGroup(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		body, err := e.doRequest(ctx, embeddingRequest{
			Input:          texts,
			Model:          e.cfg.Model,
			EncodingFormat: "float",
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}

		vectors, err := decodeVectorList(body, len(texts))
		if err != nil {
			// A malformed payload is not retryable.
			return nil, err
		}
		return vectors, nil
	}

	return nil, fmt.Errorf("%w: embedding group failed after %d attempts: %v",
		domain.ErrUpstreamFailure, e.cfg.MaxRetries, lastErr)
}

// sleepBackoff waits 200ms * 2^(attempt-1) plus up to 50% jitter, or
// returns early when the context is done.
func sleepBackoff(ctx context.Context, attempt int) error {
	base := 200 * time.Millisecond << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	timer := time.NewTimer(base + jitter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// decodeVectorList validates a batch response: exactly one well-formed
// vector per input, nothing missing, nothing extra.
func decodeVectorList(body []byte, want int) ([][]float32, error) {
	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse embedding response: %v", domain.ErrUpstreamFailure, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: embedding API error: %s (type: %s, code: %s)",
			domain.ErrUpstreamFailure, resp.Error.Message, resp.Error.Type, resp.Error.Code)
	}
	if len(resp.Data) != want {
		return nil, fmt.Errorf("%w: embedding count mismatch: got %d vectors for %d inputs",
			domain.ErrDataIntegrity, len(resp.Data), want)
	}

	vectors := make([][]float32, want)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= want {
			return nil, fmt.Errorf("%w: embedding index %d out of range", domain.ErrDataIntegrity, d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", domain.ErrDataIntegrity, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: missing embedding for input %d", domain.ErrDataIntegrity, i)
		}
	}
	return vectors, nil
}

// decodeSingleVector handles the two documented single-input shapes: a
// one-element data list, or a flat vector. Anything else is rejected
// rather than guessed at.
func decodeSingleVector(body []byte) ([]float32, error) {
	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		if resp.Error != nil {
			return nil, fmt.Errorf("%w: embedding API error: %s",
				domain.ErrUpstreamFailure, resp.Error.Message)
		}
		if len(resp.Data) == 1 && len(resp.Data[0].Embedding) > 0 {
			return resp.Data[0].Embedding, nil
		}
	}

	var flat flatEmbeddingResponse
	if err := json.Unmarshal(body, &flat); err == nil && len(flat.Embedding) > 0 {
		return flat.Embedding, nil
	}

	return nil, fmt.Errorf("%w: unrecognised embedding response shape", domain.ErrUpstreamFailure)
}

// normalizeVector scales v to unit length in place. Zero vectors are left
// alone.
func normalizeVector(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

// Dimensions returns the embedding dimension size
func (e *OpenAIEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *OpenAIEmbedding) Model() string {
	return e.cfg.Model
}

// Close releases resources held by the embedding client
func (e *OpenAIEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// doRequest posts to the embeddings endpoint and returns the raw body.
func (e *OpenAIEmbedding) doRequest(ctx context.Context, reqBody embeddingRequest) ([]byte, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: embedding request failed: %v", domain.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read embedding response: %v", domain.ErrUpstreamFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: embedding API returned status %d", domain.ErrUpstreamFailure, resp.StatusCode)
	}

	return respBody, nil
}
