package domain

import "time"

// Source types for analysis documents. A similarity query is always
// scoped to a single source type.
const (
	SourcePullRequest = "pull_request"
	SourceRepository  = "repository"
)

// AnalysisDocument is the result of one AI code-review run: either a
// pull-request review or a full-repository scan. Immutable after creation.
type AnalysisDocument struct {
	ID           string             `json:"id"            db:"id"`
	SourceType   string             `json:"source_type"   db:"source_type"`
	Title        string             `json:"title"         db:"title"`
	Author       string             `json:"author"        db:"author"`
	Number       int                `json:"number"        db:"number"`
	OverallScore float64            `json:"overall_score" db:"overall_score"`
	Files        []FileAnalysisItem `json:"files"`
	CreatedAt    time.Time          `json:"created_at"    db:"created_at"`
}

// FileAnalysisItem is one analyzed file within an AnalysisDocument.
// Filename is unique within its parent document. The embedding is
// optional: absent when generation failed or was skipped.
type FileAnalysisItem struct {
	DocumentID string  `json:"document_id" db:"document_id"`
	Filename   string  `json:"filename"    db:"filename"`
	Score      float64 `json:"score"       db:"score"`
	IssueCount int     `json:"issue_count" db:"issue_count"`
	Insight    string  `json:"insight"     db:"insight"`
	Embedding  Vector  `json:"-"           db:"embedding"`
}

// SimilarityResult joins a matched file back to its owning document's
// review-run context. Computed per query, never persisted.
type SimilarityResult struct {
	DocumentID string    `json:"document_id"`
	SourceType string    `json:"source_type"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	Number     int       `json:"number"`
	Filename   string    `json:"filename"`
	Insight    string    `json:"insight"`
	Score      float64   `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}
