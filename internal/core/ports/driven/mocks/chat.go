package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/ansa-core/internal/core/ports/driven"
)

// scripted is one step of a mock stream: a delta, a done marker, or an
// error to return from Next.
type scripted struct {
	event driven.ChatEvent
	err   error
}

// MockChatStream replays a scripted sequence of events.
type MockChatStream struct {
	mu     sync.Mutex
	steps  []scripted
	pos    int
	closes int
}

func (s *MockChatStream) Next() (driven.ChatEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.steps) {
		return driven.ChatEvent{Done: true}, nil
	}
	step := s.steps[s.pos]
	s.pos++
	return step.event, step.err
}

func (s *MockChatStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// CloseCount reports how many times Close was called.
func (s *MockChatStream) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// MockChatService is a mock implementation of ChatService for testing
type MockChatService struct {
	mu       sync.Mutex
	steps    []scripted
	openErr  error
	lastReq  driven.ChatRequest
	stream   *MockChatStream
	reqCount int
}

// NewMockChatService creates a new MockChatService
func NewMockChatService() *MockChatService {
	return &MockChatService{}
}

func (m *MockChatService) StreamChat(ctx context.Context, req driven.ChatRequest) (driven.ChatStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReq = req
	m.reqCount++
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.stream = &MockChatStream{steps: m.steps}
	return m.stream, nil
}

func (m *MockChatService) Model() string {
	return "mock-chat-model"
}

func (m *MockChatService) Close() error {
	return nil
}

// Helper methods for testing

// ScriptDeltas queues deltas followed by a clean completion.
func (m *MockChatService) ScriptDeltas(deltas ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = nil
	for _, d := range deltas {
		m.steps = append(m.steps, scripted{event: driven.ChatEvent{Delta: d}})
	}
	m.steps = append(m.steps, scripted{event: driven.ChatEvent{Done: true}})
}

// ScriptFailureAfter queues deltas followed by a stream error instead of
// a completion.
func (m *MockChatService) ScriptFailureAfter(err error, deltas ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = nil
	for _, d := range deltas {
		m.steps = append(m.steps, scripted{event: driven.ChatEvent{Delta: d}})
	}
	m.steps = append(m.steps, scripted{err: err})
}

func (m *MockChatService) SetOpenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

func (m *MockChatService) LastRequest() driven.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReq
}

func (m *MockChatService) Stream() *MockChatStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream
}
