package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/reviewpilot/reviewpilot/internal/adapter/store"
	"github.com/reviewpilot/reviewpilot/internal/domain"
	"github.com/reviewpilot/reviewpilot/internal/port"
	"github.com/reviewpilot/reviewpilot/internal/service"
)

// AnalysisHandler handles analysis-document CRUD and embedding ingestion.
type AnalysisHandler struct {
	store  *store.PostgresStore
	ingest *service.IngestService
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(s *store.PostgresStore, ingest *service.IngestService) *AnalysisHandler {
	return &AnalysisHandler{store: s, ingest: ingest}
}

// Register sets up analysis routes.
func (h *AnalysisHandler) Register(router fiber.Router) {
	analyses := router.Group("/analyses")
	analyses.Post("/", h.Create)
	analyses.Get("/", h.List)
	analyses.Get("/:id", h.Get)
	analyses.Delete("/:id", h.Delete)
	analyses.Post("/:id/embeddings", h.GenerateEmbeddings)
}

// Create stores a new analysis document with its file items.
func (h *AnalysisHandler) Create(c fiber.Ctx) error {
	var body struct {
		SourceType   string  `json:"source_type"`
		Title        string  `json:"title"`
		Author       string  `json:"author"`
		Number       int     `json:"number"`
		OverallScore float64 `json:"overall_score"`
		Files        []struct {
			Filename   string  `json:"filename"`
			Score      float64 `json:"score"`
			IssueCount int     `json:"issue_count"`
			Insight    string  `json:"insight"`
		} `json:"files"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if body.SourceType != domain.SourcePullRequest && body.SourceType != domain.SourceRepository {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "source_type must be pull_request or repository"})
	}
	if body.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}
	seen := make(map[string]bool, len(body.Files))
	for _, f := range body.Files {
		if f.Filename == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "every file needs a filename"})
		}
		if seen[f.Filename] {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duplicate filename: " + f.Filename})
		}
		seen[f.Filename] = true
	}

	doc := &domain.AnalysisDocument{
		ID:           uuid.New().String(),
		SourceType:   body.SourceType,
		Title:        body.Title,
		Author:       body.Author,
		Number:       body.Number,
		OverallScore: body.OverallScore,
	}
	for _, f := range body.Files {
		doc.Files = append(doc.Files, domain.FileAnalysisItem{
			Filename:   f.Filename,
			Score:      f.Score,
			IssueCount: f.IssueCount,
			Insight:    f.Insight,
		})
	}

	created, err := h.store.CreateDocument(c.Context(), doc)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// List returns documents of one source type, newest first.
func (h *AnalysisHandler) List(c fiber.Ctx) error {
	sourceType := c.Query("source_type", domain.SourcePullRequest)
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}

	docs, err := h.store.ListDocuments(c.Context(), sourceType, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"analyses": docs, "count": len(docs)})
}

// Get returns one document with its files.
func (h *AnalysisHandler) Get(c fiber.Ctx) error {
	doc, err := h.store.GetDocument(c.Context(), c.Params("id"))
	if errors.Is(err, port.ErrDocumentNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(doc)
}

// Delete removes a document; embeddings go with it.
func (h *AnalysisHandler) Delete(c fiber.Ctx) error {
	err := h.store.DeleteDocument(c.Context(), c.Params("id"))
	if errors.Is(err, port.ErrDocumentNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// GenerateEmbeddings embeds every insight-bearing file of a document.
// This is the write path: provider failures surface as 502, not as
// silently missing vectors.
func (h *AnalysisHandler) GenerateEmbeddings(c fiber.Ctx) error {
	embedded, err := h.ingest.EmbedDocumentFiles(c.Context(), c.Params("id"))
	switch {
	case errors.Is(err, port.ErrDocumentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, port.ErrProviderUnavailable), errors.Is(err, port.ErrInvalidEmbeddingShape):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error(), "embedded": embedded})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error(), "embedded": embedded})
	}
	return c.JSON(fiber.Map{"ok": true, "embedded": embedded})
}
