package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
	"github.com/custodia-labs/ansa-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore implements driven.ChunkStore using PostgreSQL with pgvector.
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new ChunkStore
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// SaveBatch saves chunks with their embeddings in a transaction. The batch
// is checked for consistent embedding dimensions before any row is
// written; a mismatch is a data integrity failure, never a partial write.
func (s *ChunkStore) SaveBatch(ctx context.Context, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	dims := len(chunks[0].Embedding)
	for i, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %d has no embedding", domain.ErrDataIntegrity, i)
		}
		if len(chunk.Embedding) != dims {
			return fmt.Errorf("%w: chunk %d has %d-dimensional embedding, batch started with %d",
				domain.ErrDataIntegrity, i, len(chunk.Embedding), dims)
		}
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO chunks (id, document_id, position, content, page_number, start_char, end_char, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector, $9)
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			_, err = stmt.ExecContext(ctx,
				chunk.ID,
				chunk.DocumentID,
				chunk.Index,
				chunk.Content,
				chunk.Page,
				chunk.StartChar,
				chunk.EndChar,
				formatVector(chunk.Embedding),
				chunk.CreatedAt,
			)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// MatchChunks calls the match_chunks stored procedure. The store scores
// and orders results itself; rows come back ordered by similarity
// descending and are not re-sorted here.
func (s *ChunkStore) MatchChunks(ctx context.Context, embedding []float32, sessionID string, threshold float64, count int) ([]domain.RetrievalResult, error) {
	query := `
		SELECT id, content, page_number, similarity
		FROM match_chunks($1::vector, $2, $3, $4)
	`

	rows, err := s.db.QueryContext(ctx, query, formatVector(embedding), sessionID, threshold, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.RetrievalResult
	for rows.Next() {
		var (
			result domain.RetrievalResult
			rawSim any
		)
		err := rows.Scan(
			&result.ChunkID,
			&result.Content,
			&result.Page,
			&rawSim,
		)
		if err != nil {
			return nil, err
		}

		// Similarity may arrive numeric or string-encoded depending on
		// the driver's view of the column; coerce the two documented
		// shapes and reject anything else.
		result.Similarity, err = coerceSimilarity(rawSim)
		if err != nil {
			return nil, err
		}

		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// coerceSimilarity converts a wire similarity value into a float64.
func coerceSimilarity(v any) (float64, error) {
	switch s := v.(type) {
	case float64:
		return s, nil
	case []byte:
		f, err := strconv.ParseFloat(string(s), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: unparseable similarity %q", domain.ErrUpstreamFailure, string(s))
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: unparseable similarity %q", domain.ErrUpstreamFailure, s)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: unexpected similarity type %T", domain.ErrUpstreamFailure, v)
	}
}

// formatVector renders an embedding as a pgvector literal, e.g. [0.1,0.2].
func formatVector(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
