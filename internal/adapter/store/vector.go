package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/reviewpilot/reviewpilot/internal/domain"
	"github.com/reviewpilot/reviewpilot/internal/port"
)

// VectorIndexName is the fixed identifier of the cosine ANN index over
// analysis_files.embedding. The index is created out-of-band (see
// migrations/schema.sql); the engine only references it.
const VectorIndexName = "analysis_files_embedding_cosine_idx"

// VectorStore handles pgvector-specific operations for file embeddings.
// It implements port.SimilarityIndex.
type VectorStore struct {
	store     *PostgresStore
	dimension int
}

// NewVectorStore creates a vector store backed by the given Postgres store.
func NewVectorStore(store *PostgresStore, dimension int) *VectorStore {
	return &VectorStore{store: store, dimension: dimension}
}

// UpsertFileEmbedding attaches a vector to an analyzed file. Overwrites
// any prior vector for the same (document, filename); last write wins.
func (v *VectorStore) UpsertFileEmbedding(ctx context.Context, documentID, filename string, vector domain.Vector) error {
	if len(vector) != v.dimension {
		return fmt.Errorf("%w: got %d, want %d", port.ErrDimensionMismatch, len(vector), v.dimension)
	}

	query := `UPDATE analysis_files SET embedding = $1::vector
	          WHERE document_id = $2 AND filename = $3`

	res, err := v.store.db.ExecContext(ctx, query, vectorToString(vector), documentID, filename)
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return port.ErrFileNotFound
	}
	return nil
}

// FileEmbedding returns the stored embedding for one (document, filename) pair.
func (v *VectorStore) FileEmbedding(ctx context.Context, documentID, filename string) (domain.Vector, error) {
	query := `SELECT embedding::text FROM analysis_files
	          WHERE document_id = $1 AND filename = $2`

	var raw sql.NullString
	err := v.store.db.QueryRowContext(ctx, query, documentID, filename).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return nil, port.ErrNoEmbedding
	}
	return parseVector(raw.String)
}

// NearestDocuments runs the ANN query: best-matching file per document,
// ordered by cosine distance, scoped to one source type. Scores map
// cosine distance to similarity via 1 - distance.
func (v *VectorStore) NearestDocuments(ctx context.Context, vector domain.Vector, sourceType string, k int) ([]port.DocumentCandidate, error) {
	query := `SELECT document_id, score FROM (
	              SELECT DISTINCT ON (f.document_id)
	                     f.document_id, 1 - (f.embedding <=> $1::vector) AS score
	              FROM analysis_files f
	              JOIN analysis_documents d ON d.id = f.document_id
	              WHERE f.embedding IS NOT NULL AND d.source_type = $2
	              ORDER BY f.document_id, f.embedding <=> $1::vector
	          ) c
	          ORDER BY score DESC
	          LIMIT $3`

	rows, err := v.store.db.QueryContext(ctx, query, vectorToString(vector), sourceType, k)
	if err != nil {
		return nil, fmt.Errorf("nearest documents: %w", err)
	}
	defer rows.Close()

	var candidates []port.DocumentCandidate
	for rows.Next() {
		var c port.DocumentCandidate
		if err := rows.Scan(&c.DocumentID, &c.Score); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// FilesForDocuments loads embedded files of the given documents together
// with their owning document context. The inner join drops index hits
// whose parent document no longer resolves.
func (v *VectorStore) FilesForDocuments(ctx context.Context, documentIDs []string) ([]domain.FileAnalysisItem, map[string]domain.AnalysisDocument, error) {
	if len(documentIDs) == 0 {
		return nil, map[string]domain.AnalysisDocument{}, nil
	}

	query := `SELECT f.document_id, f.filename, f.score, f.issue_count, f.insight, f.embedding::text,
	                 d.source_type, d.title, d.author, d.number, d.overall_score, d.created_at
	          FROM analysis_files f
	          JOIN analysis_documents d ON d.id = f.document_id
	          WHERE f.document_id = ANY($1) AND f.embedding IS NOT NULL`

	rows, err := v.store.db.QueryContext(ctx, query, pq.Array(documentIDs))
	if err != nil {
		return nil, nil, fmt.Errorf("files for documents: %w", err)
	}
	defer rows.Close()

	var files []domain.FileAnalysisItem
	docs := make(map[string]domain.AnalysisDocument)
	for rows.Next() {
		var f domain.FileAnalysisItem
		var d domain.AnalysisDocument
		var raw string
		if err := rows.Scan(
			&f.DocumentID, &f.Filename, &f.Score, &f.IssueCount, &f.Insight, &raw,
			&d.SourceType, &d.Title, &d.Author, &d.Number, &d.OverallScore, &d.CreatedAt,
		); err != nil {
			return nil, nil, fmt.Errorf("scan file: %w", err)
		}
		vec, err := parseVector(raw)
		if err != nil {
			// Corrupt stored vector: skip the row rather than fail the search.
			continue
		}
		f.Embedding = vec
		d.ID = f.DocumentID
		files = append(files, f)
		docs[f.DocumentID] = d
	}
	return files, docs, rows.Err()
}

// vectorToString converts a vector to pgvector text format: [0.1,0.2,0.3].
func vectorToString(v domain.Vector) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseVector parses pgvector text format back into a vector.
func parseVector(s string) (domain.Vector, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("malformed vector literal")
	}
	body := s[1 : len(s)-1]
	if body == "" {
		return domain.Vector{}, nil
	}
	parts := strings.Split(body, ",")
	vec := make(domain.Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("malformed vector element %d: %w", i, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}
