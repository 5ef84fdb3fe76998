package port

import (
	"context"

	"github.com/reviewpilot/reviewpilot/internal/domain"
)

// EmbeddingProvider abstracts the hosted embedding model. Implementations
// normalize whatever shape the provider returns to a vector of exactly
// Dimension() finite floats, or an error. Callers never see provider
// response formats.
type EmbeddingProvider interface {
	// ModelName returns the identifier of the embedding model in use.
	ModelName() string

	// Dimension returns the fixed output dimensionality D.
	Dimension() int

	// Embed generates a vector embedding for the given text. Fails with
	// ErrEmptyInput before any network call if text is blank, with
	// ErrProviderUnavailable on transport failure, and with
	// ErrInvalidEmbeddingShape on malformed output. Never retries;
	// cancelling ctx aborts the underlying call.
	Embed(ctx context.Context, text string) (domain.Vector, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error)
}
