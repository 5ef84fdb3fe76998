package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpilot/reviewpilot/internal/domain"
	"github.com/reviewpilot/reviewpilot/internal/port"
)

func newMockVectorStore(t *testing.T, dimension int) (*VectorStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewVectorStore(NewPostgresStoreWithDB(db), dimension), mock
}

func TestUpsertFileEmbedding(t *testing.T) {
	vs, mock := newMockVectorStore(t, 3)

	mock.ExpectExec(`UPDATE analysis_files SET embedding`).
		WithArgs("[1,0,0]", "d1", "a.go").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := vs.UpsertFileEmbedding(context.Background(), "d1", "a.go", domain.Vector{1, 0, 0})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertFileEmbedding_DimensionMismatchBeforeSQL(t *testing.T) {
	vs, mock := newMockVectorStore(t, 3)

	err := vs.UpsertFileEmbedding(context.Background(), "d1", "a.go", domain.Vector{1, 0})
	assert.ErrorIs(t, err, port.ErrDimensionMismatch)
	assert.NoError(t, mock.ExpectationsWereMet(), "no SQL should be issued for a bad vector")
}

func TestUpsertFileEmbedding_UnknownFile(t *testing.T) {
	vs, mock := newMockVectorStore(t, 3)

	mock.ExpectExec(`UPDATE analysis_files SET embedding`).
		WithArgs("[1,0,0]", "d1", "missing.go").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := vs.UpsertFileEmbedding(context.Background(), "d1", "missing.go", domain.Vector{1, 0, 0})
	assert.ErrorIs(t, err, port.ErrFileNotFound)
}

func TestFileEmbedding(t *testing.T) {
	vs, mock := newMockVectorStore(t, 3)

	mock.ExpectQuery(`SELECT embedding::text FROM analysis_files`).
		WithArgs("d1", "a.go").
		WillReturnRows(sqlmock.NewRows([]string{"embedding"}).AddRow("[0.25,0.5,-1]"))

	v, err := vs.FileEmbedding(context.Background(), "d1", "a.go")
	require.NoError(t, err)
	assert.Equal(t, domain.Vector{0.25, 0.5, -1}, v)
}

func TestFileEmbedding_NullVector(t *testing.T) {
	vs, mock := newMockVectorStore(t, 3)

	mock.ExpectQuery(`SELECT embedding::text FROM analysis_files`).
		WithArgs("d1", "a.go").
		WillReturnRows(sqlmock.NewRows([]string{"embedding"}).AddRow(nil))

	_, err := vs.FileEmbedding(context.Background(), "d1", "a.go")
	assert.ErrorIs(t, err, port.ErrNoEmbedding)
}

func TestFileEmbedding_UnknownFile(t *testing.T) {
	vs, mock := newMockVectorStore(t, 3)

	mock.ExpectQuery(`SELECT embedding::text FROM analysis_files`).
		WithArgs("d1", "missing.go").
		WillReturnRows(sqlmock.NewRows([]string{"embedding"}))

	_, err := vs.FileEmbedding(context.Background(), "d1", "missing.go")
	assert.ErrorIs(t, err, port.ErrFileNotFound)
}

func TestNearestDocuments(t *testing.T) {
	vs, mock := newMockVectorStore(t, 3)

	mock.ExpectQuery(`SELECT document_id, score FROM`).
		WithArgs("[1,0,0]", domain.SourcePullRequest, 100).
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "score"}).
			AddRow("d2", 0.91).
			AddRow("d1", 0.82))

	candidates, err := vs.NearestDocuments(context.Background(), domain.Vector{1, 0, 0}, domain.SourcePullRequest, 100)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "d2", candidates[0].DocumentID)
	assert.InDelta(t, 0.91, candidates[0].Score, 1e-9)
	assert.Equal(t, "d1", candidates[1].DocumentID)
}

func TestFilesForDocuments(t *testing.T) {
	vs, mock := newMockVectorStore(t, 3)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cols := []string{
		"document_id", "filename", "score", "issue_count", "insight", "embedding",
		"source_type", "title", "author", "number", "overall_score", "created_at",
	}
	mock.ExpectQuery(`SELECT f.document_id, f.filename`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("d1", "a.ts", 7.5, 2, "race condition", "[1,0,0]",
				domain.SourcePullRequest, "Fix auth", "octocat", 7, 8.0, created).
			AddRow("d1", "b.ts", 6.0, 1, "dup logic", "not-a-vector",
				domain.SourcePullRequest, "Fix auth", "octocat", 7, 8.0, created))

	files, docs, err := vs.FilesForDocuments(context.Background(), []string{"d1"})
	require.NoError(t, err)
	require.Len(t, files, 1, "rows with corrupt vectors are skipped")
	assert.Equal(t, "a.ts", files[0].Filename)
	assert.Equal(t, domain.Vector{1, 0, 0}, files[0].Embedding)

	doc, ok := docs["d1"]
	require.True(t, ok)
	assert.Equal(t, "Fix auth", doc.Title)
	assert.Equal(t, "octocat", doc.Author)
	assert.Equal(t, created, doc.CreatedAt)
}

func TestFilesForDocuments_NoIDs(t *testing.T) {
	vs, mock := newMockVectorStore(t, 3)

	files, docs, err := vs.FilesForDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVectorToString(t *testing.T) {
	assert.Equal(t, "[1,0,0]", vectorToString(domain.Vector{1, 0, 0}))
	assert.Equal(t, "[0.25,-0.5,1.5]", vectorToString(domain.Vector{0.25, -0.5, 1.5}))
	assert.Equal(t, "[]", vectorToString(domain.Vector{}))
}

func TestParseVectorRoundTrip(t *testing.T) {
	orig := domain.Vector{0.25, -0.5, 1.5, 0}
	parsed, err := parseVector(vectorToString(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, parsed)
}

func TestParseVector_Malformed(t *testing.T) {
	for _, s := range []string{"", "0.1,0.2", "[0.1,oops]", "{0.1}"} {
		_, err := parseVector(s)
		assert.Error(t, err, "input %q", s)
	}
}
