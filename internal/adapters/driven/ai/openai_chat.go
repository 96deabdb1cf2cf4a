package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
	"github.com/custodia-labs/ansa-core/internal/core/ports/driven"
)

// Ensure OpenAIChat implements ChatService
var _ driven.ChatService = (*OpenAIChat)(nil)

// ChatConfig configures the streaming chat client.
type ChatConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIChat implements ChatService against an OpenAI-compatible streaming
// chat completions endpoint.
type OpenAIChat struct {
	cfg    ChatConfig
	client *http.Client
}

// NewOpenAIChat creates a new chat client.
func NewOpenAIChat(cfg ChatConfig) (*OpenAIChat, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("chat API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}

	return &OpenAIChat{
		cfg: cfg,
		// No overall client timeout: generation streams can run long and
		// are cancelled through the request context instead.
		client: &http.Client{},
	}, nil
}

// chatCompletionRequest is the request body for the chat endpoint
type chatCompletionRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature float32              `json:"temperature"`
	Stream      bool                 `json:"stream"`
}

// chatCompletionChunk is one decoded SSE payload
type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// StreamChat opens a streaming generation. The returned stream must be
// closed by the caller on every exit path.
func (c *OpenAIChat) StreamChat(ctx context.Context, req driven.ChatRequest) (driven.ChatStream, error) {
	messages := make([]domain.ChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, domain.ChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	body, err := json.Marshal(chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: chat request failed: %v", domain.ErrUpstreamFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: chat API returned status %d: %s",
			domain.ErrUpstreamFailure, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &chatStream{body: resp.Body, scanner: scanner}, nil
}

// Model returns the model name being used
func (c *OpenAIChat) Model() string {
	return c.cfg.Model
}

// Close releases resources held by the chat client
func (c *OpenAIChat) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// chatStream consumes the provider's SSE body as tagged events.
type chatStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner

	closeOnce sync.Once
	closeErr  error
}

// Next returns the next tagged event. The provider signals clean
// completion with a [DONE] sentinel; a body that ends without one is an
// abnormal termination.
func (s *chatStream) Next() (driven.ChatEvent, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return driven.ChatEvent{Done: true}, nil
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return driven.ChatEvent{}, fmt.Errorf("%w: malformed stream chunk: %v", domain.ErrUpstreamFailure, err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			return driven.ChatEvent{Delta: delta}, nil
		}
	}

	if err := s.scanner.Err(); err != nil {
		return driven.ChatEvent{}, fmt.Errorf("%w: reading stream: %v", domain.ErrUpstreamFailure, err)
	}
	return driven.ChatEvent{}, fmt.Errorf("%w: stream ended without completion", domain.ErrUpstreamFailure)
}

// Close releases the provider reader exactly once.
func (s *chatStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
