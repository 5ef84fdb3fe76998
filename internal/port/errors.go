package port

import "errors"

// Sentinel errors used across ports. Client/input errors must reach the
// caller as-is so handlers can map them to specific 4xx responses;
// upstream errors are wrapped so errors.Is still matches.
var (
	// Client/input class: always surfaced, never converted to "no results".
	ErrEmptyInput         = errors.New("query text cannot be empty")
	ErrInvalidQueryVector = errors.New("embedding has wrong number of dimensions or non-finite values")
	ErrDimensionMismatch  = errors.New("embedding has wrong number of dimensions")
	ErrDocumentNotFound   = errors.New("analysis document not found")
	ErrFileNotFound       = errors.New("analyzed file not found")
	ErrNoEmbedding        = errors.New("no embedding stored for this file")

	// Upstream class: logged and degraded for search, propagated for writes.
	ErrProviderUnavailable   = errors.New("embedding provider unavailable")
	ErrInvalidEmbeddingShape = errors.New("embedding provider returned a malformed vector")
)
