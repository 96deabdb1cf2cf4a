package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
	"github.com/custodia-labs/ansa-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Save stores a document record. Documents are written once per
// ingestion and immutable afterwards.
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (id, file_name, page_count, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.FileName,
		doc.PageCount,
		doc.CreatedAt,
	)
	return err
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	query := `
		SELECT id, file_name, page_count, created_at
		FROM documents
		WHERE id = $1
	`

	var doc domain.Document
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID,
		&doc.FileName,
		&doc.PageCount,
		&doc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

// Delete removes a document; its chunks go with it via the cascade.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM documents WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query, id)
	return err
}
