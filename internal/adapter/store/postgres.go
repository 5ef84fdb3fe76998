package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/reviewpilot/reviewpilot/internal/domain"
	"github.com/reviewpilot/reviewpilot/internal/port"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
// The handle is constructed once at process start and injected into
// services; there is no ambient global connection.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing handle. Used by tests.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// VerifyVectorSetup checks at startup that pgvector is installed, the
// embedding column matches the configured dimensionality, and the ANN
// index exists under its fixed name. Any mismatch is a hard error: there
// is no online migration path for the vector dimension.
func (s *PostgresStore) VerifyVectorSetup(ctx context.Context, dimension int) error {
	var hasExtension bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`,
	).Scan(&hasExtension)
	if err != nil {
		return fmt.Errorf("check pgvector extension: %w", err)
	}
	if !hasExtension {
		return fmt.Errorf("pgvector extension is not installed")
	}

	// atttypmod carries the declared dimension for vector columns.
	var columnDim int
	err = s.db.QueryRowContext(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = 'analysis_files'::regclass AND attname = 'embedding'`,
	).Scan(&columnDim)
	if err != nil {
		return fmt.Errorf("check embedding column: %w", err)
	}
	if columnDim != dimension {
		return fmt.Errorf("embedding column dimension is %d, configured %d: re-index required", columnDim, dimension)
	}

	var hasIndex bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = $1)`,
		VectorIndexName,
	).Scan(&hasIndex)
	if err != nil {
		return fmt.Errorf("check ANN index: %w", err)
	}
	if !hasIndex {
		return fmt.Errorf("ANN index %q does not exist: create it before starting", VectorIndexName)
	}
	return nil
}

// --- Analysis documents ---

// CreateDocument inserts a document and its file items in one transaction.
func (s *PostgresStore) CreateDocument(ctx context.Context, doc *domain.AnalysisDocument) (*domain.AnalysisDocument, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO analysis_documents (id, source_type, title, author, number, overall_score)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id, source_type, title, author, number, overall_score, created_at`

	var result domain.AnalysisDocument
	err = tx.QueryRowContext(ctx, query,
		doc.ID, doc.SourceType, doc.Title, doc.Author, doc.Number, doc.OverallScore,
	).Scan(
		&result.ID, &result.SourceType, &result.Title, &result.Author,
		&result.Number, &result.OverallScore, &result.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO analysis_files (document_id, filename, score, issue_count, insight)
		 VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return nil, fmt.Errorf("prepare files insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range doc.Files {
		if _, err := stmt.ExecContext(ctx, result.ID, f.Filename, f.Score, f.IssueCount, f.Insight); err != nil {
			return nil, fmt.Errorf("insert file %s: %w", f.Filename, err)
		}
		f.DocumentID = result.ID
		result.Files = append(result.Files, f)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &result, nil
}

// GetDocument returns a document with its files (embeddings not loaded).
func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*domain.AnalysisDocument, error) {
	query := `SELECT id, source_type, title, author, number, overall_score, created_at
	          FROM analysis_documents WHERE id = $1`

	var doc domain.AnalysisDocument
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.SourceType, &doc.Title, &doc.Author,
		&doc.Number, &doc.OverallScore, &doc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, filename, score, issue_count, insight
		 FROM analysis_files WHERE document_id = $1 ORDER BY filename`, id)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f domain.FileAnalysisItem
		if err := rows.Scan(&f.DocumentID, &f.Filename, &f.Score, &f.IssueCount, &f.Insight); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		doc.Files = append(doc.Files, f)
	}
	return &doc, rows.Err()
}

// ListDocuments returns documents of one source type, newest first.
func (s *PostgresStore) ListDocuments(ctx context.Context, sourceType string, limit int) ([]domain.AnalysisDocument, error) {
	query := `SELECT id, source_type, title, author, number, overall_score, created_at
	          FROM analysis_documents WHERE source_type = $1
	          ORDER BY created_at DESC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, sourceType, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.AnalysisDocument
	for rows.Next() {
		var d domain.AnalysisDocument
		if err := rows.Scan(&d.ID, &d.SourceType, &d.Title, &d.Author, &d.Number, &d.OverallScore, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document; its files and embeddings go with it
// via ON DELETE CASCADE.
func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return port.ErrDocumentNotFound
	}
	return nil
}
