package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
	"github.com/custodia-labs/ansa-core/internal/core/ports/driven"
	"github.com/custodia-labs/ansa-core/internal/core/ports/driving"
	"github.com/custodia-labs/ansa-core/internal/runtime"
)

// Ensure retrievalService implements RetrievalService
var _ driving.RetrievalService = (*retrievalService)(nil)

// retrievalService implements the adaptive two-tier similarity search.
type retrievalService struct {
	chunkStore driven.ChunkStore
	services   *runtime.Services // Dynamic AI services
	config     domain.RetrievalConfig
	logger     *slog.Logger
}

// NewRetrievalService creates a new RetrievalService.
// The embedding service is accessed dynamically via runtime.Services.
func NewRetrievalService(chunkStore driven.ChunkStore, services *runtime.Services, config domain.RetrievalConfig, logger *slog.Logger) driving.RetrievalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &retrievalService{
		chunkStore: chunkStore,
		services:   services,
		config:     config,
		logger:     logger,
	}
}

// Retrieve embeds the question, runs the strict tier and, when the best
// match falls short of the acceptance bar, widens to the fallback tier.
// Fallback failures degrade to the strict results instead of failing the
// whole query.
func (s *retrievalService) Retrieve(ctx context.Context, sessionID, question string) (*domain.RetrievalOutcome, error) {
	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding service not configured", domain.ErrServiceUnavailable)
	}

	embedding, err := embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	strict, err := s.matchTier(ctx, embedding, sessionID,
		s.config.StrictThreshold, s.config.StrictCount, s.config.StrictTimeout)
	if err != nil {
		return nil, err
	}

	results := strict
	if topSimilarity(strict) < s.config.MinAcceptance {
		fallback, err := s.matchTier(ctx, embedding, sessionID,
			s.config.FallbackThreshold, s.config.FallbackCount, s.config.FallbackTimeout)
		if err != nil {
			// The strict tier already answered; a broken widening pass
			// must not take that away.
			s.logger.Warn("fallback tier failed, serving strict results",
				"session_id", sessionID, "error", err)
		} else {
			results = mergeResults(strict, fallback, s.config.MergedCap)
		}
	}

	outcome := &domain.RetrievalOutcome{
		Results:       results,
		TopSimilarity: topSimilarity(results),
	}
	switch {
	case len(results) == 0:
		outcome.Reason = domain.ReasonNoChunksFound
	case outcome.TopSimilarity < s.config.MinAcceptance:
		outcome.Reason = domain.ReasonLowSimilarity
	default:
		outcome.Sufficient = true
	}

	s.logger.Info("retrieval completed",
		"session_id", sessionID,
		"results", len(results),
		"top_similarity", outcome.TopSimilarity,
		"sufficient", outcome.Sufficient)

	return outcome, nil
}

// matchTier runs one similarity search pass under its own deadline.
func (s *retrievalService) matchTier(ctx context.Context, embedding []float32, sessionID string, threshold float64, count int, timeout time.Duration) ([]domain.RetrievalResult, error) {
	tierCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := s.chunkStore.MatchChunks(tierCtx, embedding, sessionID, threshold, count)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: similarity search exceeded %s", domain.ErrUpstreamTimeout, timeout)
		}
		return nil, fmt.Errorf("match chunks: %w", err)
	}
	return results, nil
}

// mergeResults unions two tiers by chunk ID, keeping the higher
// similarity for duplicates, ordered by similarity descending and capped.
func mergeResults(strict, fallback []domain.RetrievalResult, cap int) []domain.RetrievalResult {
	merged := make([]domain.RetrievalResult, 0, len(strict)+len(fallback))
	seen := make(map[string]int, len(strict))

	for _, r := range strict {
		seen[r.ChunkID] = len(merged)
		merged = append(merged, r)
	}
	for _, r := range fallback {
		if i, ok := seen[r.ChunkID]; ok {
			if r.Similarity > merged[i].Similarity {
				merged[i].Similarity = r.Similarity
			}
			continue
		}
		seen[r.ChunkID] = len(merged)
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})

	if len(merged) > cap {
		merged = merged[:cap]
	}
	return merged
}

// topSimilarity returns the best score in a ranked result set, 0 when empty.
func topSimilarity(results []domain.RetrievalResult) float64 {
	top := 0.0
	for _, r := range results {
		if r.Similarity > top {
			top = r.Similarity
		}
	}
	return top
}
