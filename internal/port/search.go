package port

import (
	"context"

	"github.com/reviewpilot/reviewpilot/internal/domain"
)

// DocumentCandidate is one ANN hit at document granularity: the best
// score among the document's indexed files.
type DocumentCandidate struct {
	DocumentID string
	Score      float64
}

// SimilarityIndex is the ANN-capable view of the embedding store that
// the query engine depends on. The index itself is created out-of-band;
// implementations report failures as errors and never create it.
type SimilarityIndex interface {
	// NearestDocuments returns up to k document candidates for the query
	// vector, scored by cosine similarity, restricted to one source type,
	// ordered best-first.
	NearestDocuments(ctx context.Context, vector domain.Vector, sourceType string, k int) ([]DocumentCandidate, error)

	// FilesForDocuments returns the files of the given documents that
	// carry an embedding, joined with their owning document's review
	// context. Hits whose parent document no longer resolves are omitted.
	FilesForDocuments(ctx context.Context, documentIDs []string) ([]domain.FileAnalysisItem, map[string]domain.AnalysisDocument, error)

	// FileEmbedding returns the stored embedding for one (document, file)
	// pair. Fails with ErrFileNotFound or ErrNoEmbedding.
	FileEmbedding(ctx context.Context, documentID, filename string) (domain.Vector, error)
}
