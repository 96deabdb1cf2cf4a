package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
	"github.com/custodia-labs/ansa-core/internal/core/ports/driven"
	"github.com/custodia-labs/ansa-core/internal/core/ports/driving"
	"github.com/custodia-labs/ansa-core/internal/runtime"
	"github.com/custodia-labs/ansa-core/internal/validator"
)

// Ensure ingestionService implements IngestionService
var _ driving.IngestionService = (*ingestionService)(nil)

// UploadValidator checks an upload and extracts its text. Satisfied by
// *validator.Validator; an interface so tests can skip real PDF parsing.
type UploadValidator interface {
	Validate(upload domain.Upload) (*validator.Extraction, error)
}

// PipelineFactory builds the post-processing pipeline for one document.
// The page mapping stage depends on the extracted text length and page
// count, so a fresh pipeline is assembled per ingestion.
type PipelineFactory func(totalChars, pageCount int) driven.PostProcessorPipeline

// ingestionService implements the IngestionService interface
type ingestionService struct {
	validator     UploadValidator
	newPipeline   PipelineFactory
	documentStore driven.DocumentStore
	chunkStore    driven.ChunkStore
	services      *runtime.Services // Dynamic AI services
	logger        *slog.Logger
}

// IngestionConfig wires an ingestionService.
type IngestionConfig struct {
	Validator     UploadValidator
	NewPipeline   PipelineFactory
	DocumentStore driven.DocumentStore
	ChunkStore    driven.ChunkStore
	Services      *runtime.Services
	Logger        *slog.Logger
}

// NewIngestionService creates a new IngestionService.
// The embedding service is accessed dynamically via runtime.Services.
func NewIngestionService(cfg IngestionConfig) driving.IngestionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ingestionService{
		validator:     cfg.Validator,
		newPipeline:   cfg.NewPipeline,
		documentStore: cfg.DocumentStore,
		chunkStore:    cfg.ChunkStore,
		services:      cfg.Services,
		logger:        logger,
	}
}

// Ingest validates, chunks, embeds and persists an upload. The returned
// document's ID doubles as the session ID for subsequent queries.
func (s *ingestionService) Ingest(ctx context.Context, upload domain.Upload) (*domain.Document, error) {
	start := time.Now()

	extraction, err := s.validator.Validate(upload)
	if err != nil {
		return nil, err
	}

	pipeline := s.newPipeline(len(extraction.Text), extraction.PageCount)
	chunks := pipeline.Process(extraction.Text)
	if len(chunks) == 0 {
		return nil, domain.NewValidationError(domain.CodeNoExtractableText,
			"document produced no usable fragments")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding service not configured", domain.ErrServiceUnavailable)
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed document: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: embedded %d of %d fragments",
			domain.ErrDataIntegrity, len(vectors), len(chunks))
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        uuid.NewString(),
		FileName:  upload.FileName,
		PageCount: extraction.PageCount,
		CreatedAt: now,
	}

	records := make([]*domain.Chunk, len(chunks))
	for i, c := range chunks {
		records[i] = &domain.Chunk{
			ID:         fmt.Sprintf("%s-chunk-%d", doc.ID, c.Position),
			DocumentID: doc.ID,
			Index:      c.Position,
			Content:    c.Content,
			Page:       c.Page,
			StartChar:  c.StartOffset,
			EndChar:    c.EndOffset,
			Embedding:  vectors[i],
			CreatedAt:  now,
		}
	}

	if err := s.documentStore.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	if err := s.chunkStore.SaveBatch(ctx, records); err != nil {
		// A document only exists after a fully successful ingestion;
		// take the record back out rather than leave a session with no
		// searchable fragments.
		if delErr := s.documentStore.Delete(ctx, doc.ID); delErr != nil {
			s.logger.Error("failed to remove document after chunk save failure",
				"session_id", doc.ID, "error", delErr)
		}
		return nil, fmt.Errorf("save chunks: %w", err)
	}

	s.logger.Info("document ingested",
		"session_id", doc.ID,
		"file_name", doc.FileName,
		"pages", doc.PageCount,
		"chunks", len(records),
		"duration", time.Since(start))

	return doc, nil
}
