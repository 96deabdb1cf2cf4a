package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
)

// countingStore tracks primary hits for read-through assertions.
type countingStore struct {
	docs map[string]*domain.Document
	gets int
}

func newCountingStore() *countingStore {
	return &countingStore{docs: make(map[string]*domain.Document)}
}

func (s *countingStore) Save(_ context.Context, doc *domain.Document) error {
	s.docs[doc.ID] = doc
	return nil
}

func (s *countingStore) Delete(_ context.Context, id string) error {
	delete(s.docs, id)
	return nil
}

func (s *countingStore) Get(_ context.Context, id string) (*domain.Document, error) {
	s.gets++
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func setupCache(t *testing.T) (*CachedDocumentStore, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	primary := newCountingStore()
	return NewCachedDocumentStore(primary, client, nil), primary, mr
}

func TestCachedDocumentStore_ReadThrough(t *testing.T) {
	cache, primary, _ := setupCache(t)
	ctx := context.Background()

	doc := &domain.Document{
		ID:        "session-1",
		FileName:  "report.pdf",
		PageCount: 3,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := primary.Save(ctx, doc); err != nil {
		t.Fatal(err)
	}

	// First read misses the cache and hits the primary.
	got, err := cache.Get(ctx, "session-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FileName != "report.pdf" {
		t.Errorf("FileName = %q", got.FileName)
	}
	if primary.gets != 1 {
		t.Errorf("primary gets = %d, want 1", primary.gets)
	}

	// Second read is served from the cache.
	if _, err := cache.Get(ctx, "session-1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if primary.gets != 1 {
		t.Errorf("primary gets = %d, want 1 (cache should serve)", primary.gets)
	}
}

func TestCachedDocumentStore_SavePopulatesCache(t *testing.T) {
	cache, primary, mr := setupCache(t)
	ctx := context.Background()

	doc := &domain.Document{ID: "session-2", FileName: "manual.pdf", PageCount: 5}
	if err := cache.Save(ctx, doc); err != nil {
		t.Fatal(err)
	}

	if !mr.Exists(documentPrefix + "session-2") {
		t.Error("expected cache entry after Save")
	}
	if _, ok := primary.docs["session-2"]; !ok {
		t.Error("expected primary entry after Save")
	}
}

func TestCachedDocumentStore_DeleteInvalidatesCache(t *testing.T) {
	cache, primary, mr := setupCache(t)
	ctx := context.Background()

	doc := &domain.Document{ID: "session-4", FileName: "draft.pdf", PageCount: 1}
	if err := cache.Save(ctx, doc); err != nil {
		t.Fatal(err)
	}

	if err := cache.Delete(ctx, "session-4"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists(documentPrefix + "session-4") {
		t.Error("cache entry must be invalidated on delete")
	}
	if _, ok := primary.docs["session-4"]; ok {
		t.Error("primary entry must be removed on delete")
	}
	if _, err := cache.Get(ctx, "session-4"); err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCachedDocumentStore_NotFoundPassesThrough(t *testing.T) {
	cache, _, _ := setupCache(t)

	_, err := cache.Get(context.Background(), "missing")
	if err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCachedDocumentStore_DegradesWhenRedisDown(t *testing.T) {
	cache, primary, mr := setupCache(t)
	ctx := context.Background()

	doc := &domain.Document{ID: "session-3", FileName: "notes.pdf", PageCount: 2}
	if err := primary.Save(ctx, doc); err != nil {
		t.Fatal(err)
	}

	mr.Close()

	got, err := cache.Get(ctx, "session-3")
	if err != nil {
		t.Fatalf("Get with redis down: %v", err)
	}
	if got.ID != "session-3" {
		t.Errorf("got %q", got.ID)
	}
}
