package runtime

import (
	"testing"

	"github.com/custodia-labs/ansa-core/internal/core/ports/driven/mocks"
)

func TestServices_SetEmbeddingClosesPrevious(t *testing.T) {
	services := NewServices()

	first := mocks.NewMockEmbeddingService()
	second := mocks.NewMockEmbeddingService()

	services.SetEmbeddingService(first)
	services.SetEmbeddingService(second)

	if !first.Closed() {
		t.Error("replaced service should be closed")
	}
	if second.Closed() {
		t.Error("active service must stay open")
	}
	if services.EmbeddingService() != second {
		t.Error("wrong active service")
	}
}

func TestServices_NilUntilConfigured(t *testing.T) {
	services := NewServices()

	if services.EmbeddingService() != nil {
		t.Error("expected nil embedding service")
	}
	if services.ChatService() != nil {
		t.Error("expected nil chat service")
	}
}

func TestServices_CloseReleasesAll(t *testing.T) {
	services := NewServices()
	embedder := mocks.NewMockEmbeddingService()
	services.SetEmbeddingService(embedder)
	services.SetChatService(mocks.NewMockChatService())

	if err := services.Close(); err != nil {
		t.Fatal(err)
	}
	if !embedder.Closed() {
		t.Error("Close must release the embedding service")
	}
	if services.EmbeddingService() != nil || services.ChatService() != nil {
		t.Error("Close must nil out services")
	}
}
