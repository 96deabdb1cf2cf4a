package runtime

import (
	"sync"

	"github.com/custodia-labs/ansa-core/internal/core/ports/driven"
)

// Services holds references to the AI backends. Both can be swapped or
// absent (nil) while the rest of the pipeline keeps running; callers
// must handle a nil service as a service-unavailable condition.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	embeddingService driven.EmbeddingService
	chatService      driven.ChatService
}

// NewServices creates a new Services registry
func NewServices() *Services {
	return &Services{}
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// ChatService returns the current chat service (may be nil)
func (s *Services) ChatService() driven.ChatService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatService
}

// SetEmbeddingService updates the embedding service.
// Closes the old service if present.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
	}
	s.embeddingService = svc
}

// SetChatService updates the chat service.
// Closes the old service if present.
func (s *Services) SetChatService(svc driven.ChatService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chatService != nil {
		_ = s.chatService.Close()
	}
	s.chatService = svc
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	if s.chatService != nil {
		_ = s.chatService.Close()
		s.chatService = nil
	}

	return nil
}
