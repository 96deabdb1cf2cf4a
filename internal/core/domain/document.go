package domain

import "time"

// Document represents one ingested PDF. Its ID doubles as the session ID
// that scopes all retrieval for the document.
type Document struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk represents a retrievable fragment of a document's extracted text.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"` // Chunk position within document
	Content    string    `json:"content"`
	Page       int       `json:"page"` // 1-based, clamped to [1, PageCount]
	StartChar  int       `json:"start_char"`
	EndChar    int       `json:"end_char"` // exclusive
	Embedding  []float32 `json:"embedding,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RetrievalResult is a fragment matched against a query, with the
// similarity reported by the vector store. Results only live for the
// duration of one question-answer turn.
type RetrievalResult struct {
	ChunkID    string  `json:"chunk_id"`
	Content    string  `json:"content"`
	Page       int     `json:"page"`
	Similarity float64 `json:"similarity"`
}

// Upload carries a raw uploaded file into the ingestion pipeline.
type Upload struct {
	FileName  string
	MediaType string
	Size      int64
	Data      []byte
}
