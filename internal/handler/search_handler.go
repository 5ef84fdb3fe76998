package handler

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/reviewpilot/reviewpilot/internal/port"
	"github.com/reviewpilot/reviewpilot/internal/service"
)

// SearchHandler handles similarity search endpoints.
type SearchHandler struct {
	similarity *service.SimilarityService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(similarity *service.SimilarityService) *SearchHandler {
	return &SearchHandler{similarity: similarity}
}

// Register sets up search routes.
func (h *SearchHandler) Register(router fiber.Router) {
	router.Post("/similarity/search", h.SearchByText)
	router.Get("/analyses/:id/files/:filename/similar", h.SearchByReference)
}

// SearchByText embeds free text and returns similar analyzed files.
// Input-validation failures come back as 400 with a specific message;
// upstream degradation presents as an empty result list.
func (h *SearchHandler) SearchByText(c fiber.Ctx) error {
	var body struct {
		Query      string `json:"query"`
		SourceType string `json:"source_type"`
		Limit      int    `json:"limit"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	results, err := h.similarity.SearchByText(c.Context(), body.Query, body.SourceType, body.Limit)
	if err != nil {
		return clientError(c, err)
	}

	return c.JSON(fiber.Map{"results": results, "count": len(results)})
}

// SearchByReference returns files similar to an already-analyzed file,
// excluding the file itself.
func (h *SearchHandler) SearchByReference(c fiber.Ctx) error {
	documentID := c.Params("id")
	filename, err := decodeFilename(c.Params("filename"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid filename"})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	sourceType := c.Query("source_type")

	var floor *float64
	if raw := strings.TrimSpace(c.Query("floor")); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || f > 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "floor must be a number in [0,1]"})
		}
		floor = &f
	}

	results, err := h.similarity.SearchByReference(c.Context(), documentID, filename, sourceType, limit, floor)
	if err != nil {
		return clientError(c, err)
	}

	return c.JSON(fiber.Map{"results": results, "count": len(results)})
}

// clientError maps the client/input error class to specific responses.
// Anything else is unexpected here: the service already degrades
// upstream failures to empty results.
func clientError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, port.ErrEmptyInput),
		errors.Is(err, port.ErrInvalidQueryVector),
		errors.Is(err, port.ErrDimensionMismatch):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, port.ErrDocumentNotFound),
		errors.Is(err, port.ErrFileNotFound),
		errors.Is(err, port.ErrNoEmbedding):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

// decodeFilename reverses the percent-encoding clients use for filenames
// in route params (filenames contain slashes).
func decodeFilename(raw string) (string, error) {
	return url.PathUnescape(raw)
}
