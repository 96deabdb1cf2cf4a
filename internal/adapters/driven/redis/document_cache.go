package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
	"github.com/custodia-labs/ansa-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*CachedDocumentStore)(nil)

// Key prefix for cached document metadata
const documentPrefix = "ansa:doc:"

// defaultTTL keeps cached metadata around for a working session without
// letting stale entries pile up.
const defaultTTL = 24 * time.Hour

// CachedDocumentStore is a read-through cache over a primary
// DocumentStore. The query path hits it on every question to verify the
// session, so metadata is cached in Redis with a TTL. Cache failures
// degrade silently to the primary store.
type CachedDocumentStore struct {
	primary driven.DocumentStore
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
}

// NewCachedDocumentStore wraps a primary store with a Redis cache.
func NewCachedDocumentStore(primary driven.DocumentStore, client *redis.Client, logger *slog.Logger) *CachedDocumentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedDocumentStore{
		primary: primary,
		client:  client,
		ttl:     defaultTTL,
		logger:  logger,
	}
}

// Save writes through to the primary store, then populates the cache.
func (s *CachedDocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	if err := s.primary.Save(ctx, doc); err != nil {
		return err
	}
	s.cache(ctx, doc)
	return nil
}

// Get tries the cache first and falls back to the primary store,
// re-populating the cache on a miss.
func (s *CachedDocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	data, err := s.client.Get(ctx, documentPrefix+id).Bytes()
	if err == nil {
		var doc domain.Document
		if err := json.Unmarshal(data, &doc); err == nil {
			return &doc, nil
		}
		// Unreadable cache entry: fall through to the primary store.
	} else if err != redis.Nil {
		s.logger.Warn("document cache read failed", "document_id", id, "error", err)
	}

	doc, err := s.primary.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache(ctx, doc)
	return doc, nil
}

// Delete removes the document from the primary store and invalidates the
// cache entry.
func (s *CachedDocumentStore) Delete(ctx context.Context, id string) error {
	if err := s.primary.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.client.Del(ctx, documentPrefix+id).Err(); err != nil {
		s.logger.Warn("document cache invalidation failed", "document_id", id, "error", err)
	}
	return nil
}

// cache best-effort stores document metadata; failures are logged, never
// surfaced.
func (s *CachedDocumentStore) cache(ctx context.Context, doc *domain.Document) {
	data, err := json.Marshal(doc)
	if err != nil {
		s.logger.Warn("document cache marshal failed", "document_id", doc.ID, "error", err)
		return
	}
	if err := s.client.Set(ctx, documentPrefix+doc.ID, data, s.ttl).Err(); err != nil {
		s.logger.Warn("document cache write failed", "document_id", doc.ID, "error", err)
	}
}

// Ping checks cache reachability for the readiness endpoint.
func (s *CachedDocumentStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
