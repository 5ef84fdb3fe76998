package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/reviewpilot/reviewpilot/internal/domain"
	"github.com/reviewpilot/reviewpilot/internal/port"
	"github.com/reviewpilot/reviewpilot/pkg/config"
)

// SimilarityService runs semantic similarity queries over indexed file
// embeddings. It is stateless and request-scoped: every query is an
// independent read against the index.
type SimilarityService struct {
	ai    port.EmbeddingProvider
	index port.SimilarityIndex
	cfg   config.SimilarityConfig
	dim   int
}

// NewSimilarityService creates a similarity service.
func NewSimilarityService(ai port.EmbeddingProvider, index port.SimilarityIndex, dim int, cfg config.SimilarityConfig) *SimilarityService {
	return &SimilarityService{ai: ai, index: index, cfg: cfg, dim: dim}
}

// SimilarityQuery describes one search against the index.
type SimilarityQuery struct {
	Vector     domain.Vector
	SourceType string
	Limit      int

	// Floor overrides the default similarity floor when non-nil.
	Floor *float64

	// ExcludeDocumentID / ExcludeFilename drop the query's own source from
	// results. Both set: only that (document, filename) pair is dropped.
	// Only the document id set: the whole document is dropped.
	ExcludeDocumentID string
	ExcludeFilename   string
}

// SearchByText embeds free text and searches with the general default
// floor. Empty text is a client error rejected before any provider call;
// provider failure degrades to an empty result list.
func (s *SimilarityService) SearchByText(ctx context.Context, text, sourceType string, limit int) ([]domain.SimilarityResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, port.ErrEmptyInput
	}

	vector, err := s.ai.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, port.ErrEmptyInput) {
			return nil, err
		}
		// Search is best-effort: an upstream embedding failure reads as
		// "no matches", not as an error banner.
		slog.Error("embed query failed", "error", err, "text_excerpt", excerpt(text, 80))
		return []domain.SimilarityResult{}, nil
	}

	return s.Search(ctx, SimilarityQuery{
		Vector:     vector,
		SourceType: sourceType,
		Limit:      limit,
	})
}

// SearchByReference searches for files similar to an already-analyzed
// (document, filename) pair, using its stored embedding and the
// contextual default floor unless overridden. The reference pair itself
// is excluded from results.
func (s *SimilarityService) SearchByReference(ctx context.Context, documentID, filename, sourceType string, limit int, floor *float64) ([]domain.SimilarityResult, error) {
	vector, err := s.index.FileEmbedding(ctx, documentID, filename)
	if err != nil {
		return nil, fmt.Errorf("reference embedding: %w", err)
	}

	return s.Search(ctx, SimilarityQuery{
		Vector:            vector,
		SourceType:        sourceType,
		Limit:             limit,
		Floor:             floor,
		ExcludeDocumentID: documentID,
		ExcludeFilename:   filename,
	})
}

// Search runs the core query pipeline. Validation failures are returned
// as errors; index failures degrade to an empty result list with a
// logged diagnostic.
func (s *SimilarityService) Search(ctx context.Context, q SimilarityQuery) ([]domain.SimilarityResult, error) {
	if !q.Vector.Valid(s.dim) {
		return nil, fmt.Errorf("%w: got length %d, want %d", port.ErrInvalidQueryVector, len(q.Vector), s.dim)
	}
	if q.Limit <= 0 {
		q.Limit = s.cfg.DefaultLimit
	}
	if q.SourceType == "" {
		q.SourceType = domain.SourcePullRequest
	}

	floor := effectiveFloor(q.Floor, q.ExcludeDocumentID != "", s.cfg.GeneralFloor, s.cfg.ContextualFloor)

	// Over-fetch: ANN ranks candidates before any of the filtering below,
	// so a pool sized close to the limit starves the final result set.
	candidates, err := s.index.NearestDocuments(ctx, q.Vector, q.SourceType, q.Limit*s.cfg.CandidateMultiplier)
	if err != nil {
		slog.Error("vector search failed", "error", err, "source_type", q.SourceType)
		return []domain.SimilarityResult{}, nil
	}

	pool := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < floor {
			continue
		}
		pool = append(pool, c.DocumentID)
		if len(pool) >= q.Limit*s.cfg.PoolMultiplier {
			break
		}
	}
	if len(pool) == 0 {
		return []domain.SimilarityResult{}, nil
	}

	// A candidate document may contribute several embedded files; expand
	// and score each one individually.
	files, docs, err := s.index.FilesForDocuments(ctx, pool)
	if err != nil {
		slog.Error("candidate expansion failed", "error", err, "documents", len(pool))
		return []domain.SimilarityResult{}, nil
	}

	results := make([]domain.SimilarityResult, 0, q.Limit)
	for _, f := range files {
		// An index entry may reference a file whose embedding was cleared
		// after retrieval.
		if !f.Embedding.Valid(s.dim) {
			continue
		}
		if s.excluded(q, f) {
			continue
		}
		score := domain.Cosine(q.Vector, f.Embedding)
		if score < floor {
			continue
		}
		doc, ok := docs[f.DocumentID]
		if !ok {
			// Referential inconsistency: drop rather than return null context.
			continue
		}
		results = append(results, domain.SimilarityResult{
			DocumentID: f.DocumentID,
			SourceType: doc.SourceType,
			Title:      doc.Title,
			Author:     doc.Author,
			Number:     doc.Number,
			Filename:   f.Filename,
			Insight:    excerpt(f.Insight, s.cfg.PreviewChars),
			Score:      score,
			CreatedAt:  doc.CreatedAt,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// excluded applies the self-exclusion rules.
func (s *SimilarityService) excluded(q SimilarityQuery, f domain.FileAnalysisItem) bool {
	if q.ExcludeDocumentID == "" {
		return false
	}
	if f.DocumentID != q.ExcludeDocumentID {
		return false
	}
	if q.ExcludeFilename != "" {
		return f.Filename == q.ExcludeFilename
	}
	return true
}

// excerpt truncates text to at most n bytes for result previews and logs.
func excerpt(text string, n int) string {
	if n > 0 && len(text) > n {
		return text[:n]
	}
	return text
}
