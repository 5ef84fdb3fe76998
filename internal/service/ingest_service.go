package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reviewpilot/reviewpilot/internal/domain"
	"github.com/reviewpilot/reviewpilot/internal/port"
)

// DocumentReader is the slice of the document store the ingest path needs.
type DocumentReader interface {
	GetDocument(ctx context.Context, id string) (*domain.AnalysisDocument, error)
}

// EmbeddingWriter persists one validated vector per analyzed file.
type EmbeddingWriter interface {
	UpsertFileEmbedding(ctx context.Context, documentID, filename string, vector domain.Vector) error
}

// IngestService generates and stores embeddings for analysis documents.
// Unlike search, this is a write path: provider and store failures are
// propagated, never swallowed: silent data loss here would be worse
// than a visible failure.
type IngestService struct {
	ai    port.EmbeddingProvider
	docs  DocumentReader
	store EmbeddingWriter
}

// NewIngestService creates an ingest service.
func NewIngestService(ai port.EmbeddingProvider, docs DocumentReader, store EmbeddingWriter) *IngestService {
	return &IngestService{ai: ai, docs: docs, store: store}
}

// EmbedDocumentFiles generates an embedding for every file of the
// document that has insight text and attaches it to the file. Returns
// the number of files embedded. Files without insight text are skipped;
// re-running is idempotent (vectors are overwritten in place).
func (s *IngestService) EmbedDocumentFiles(ctx context.Context, documentID string) (int, error) {
	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("load document: %w", err)
	}

	slog.Info("embedding document files", "document_id", documentID, "files", len(doc.Files))

	embedded := 0
	for _, f := range doc.Files {
		if f.Insight == "" {
			continue
		}

		vector, err := s.ai.Embed(ctx, embeddingText(f))
		if err != nil {
			return embedded, fmt.Errorf("embed %s: %w", f.Filename, err)
		}
		if err := s.store.UpsertFileEmbedding(ctx, documentID, f.Filename, vector); err != nil {
			return embedded, fmt.Errorf("store embedding for %s: %w", f.Filename, err)
		}
		embedded++
	}
	return embedded, nil
}

// embeddingText builds the text a file is embedded under: the filename
// anchors the vector to its path, the insight carries the semantics.
func embeddingText(f domain.FileAnalysisItem) string {
	return fmt.Sprintf("File: %s\n%s", f.Filename, f.Insight)
}
