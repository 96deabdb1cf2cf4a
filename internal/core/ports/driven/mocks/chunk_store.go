package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
)

// matchCall records one MatchChunks invocation for assertions.
type matchCall struct {
	SessionID string
	Threshold float64
	Count     int
}

// MockChunkStore is a mock implementation of ChunkStore for testing
type MockChunkStore struct {
	mu     sync.RWMutex
	chunks map[string][]*domain.Chunk

	// Scripted results per threshold; the two retrieval tiers use
	// distinct thresholds, so this keys cleanly.
	matches map[float64][]domain.RetrievalResult
	matchEr map[float64]error
	calls   []matchCall

	saveErr error
}

// NewMockChunkStore creates a new MockChunkStore
func NewMockChunkStore() *MockChunkStore {
	return &MockChunkStore{
		chunks:  make(map[string][]*domain.Chunk),
		matches: make(map[float64][]domain.RetrievalResult),
		matchEr: make(map[float64]error),
	}
}

func (m *MockChunkStore) SaveBatch(ctx context.Context, chunks []*domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, chunk := range chunks {
		m.chunks[chunk.DocumentID] = append(m.chunks[chunk.DocumentID], chunk)
	}
	return nil
}

func (m *MockChunkStore) MatchChunks(ctx context.Context, embedding []float32, sessionID string, threshold float64, count int) ([]domain.RetrievalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, matchCall{SessionID: sessionID, Threshold: threshold, Count: count})

	if err := m.matchEr[threshold]; err != nil {
		return nil, err
	}

	results := m.matches[threshold]
	if len(results) > count {
		results = results[:count]
	}
	return results, nil
}

// Helper methods for testing

func (m *MockChunkStore) SetMatches(threshold float64, results []domain.RetrievalResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[threshold] = results
}

func (m *MockChunkStore) SetMatchError(threshold float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchEr[threshold] = err
}

func (m *MockChunkStore) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

func (m *MockChunkStore) SavedChunks(documentID string) []*domain.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chunks[documentID]
}

func (m *MockChunkStore) MatchCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}
