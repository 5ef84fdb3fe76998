package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/reviewpilot/reviewpilot/internal/domain"
	"github.com/reviewpilot/reviewpilot/internal/port"
)

// OllamaEndpointConfig holds the configuration for an Ollama embed endpoint.
type OllamaEndpointConfig struct {
	BaseURL string // e.g. http://localhost:11434 or https://api.ollama.com
	Model   string // e.g. nomic-embed-text, bge-m3
	Token   string // Bearer token for Ollama Cloud (empty = no auth)
}

// OllamaProvider implements port.EmbeddingProvider using the Ollama REST API.
// This is the single boundary where provider response shapes are normalized
// to the fixed vector[D]-or-error contract.
type OllamaProvider struct {
	cfg        OllamaEndpointConfig
	dimension  int
	maxChars   int
	httpClient *http.Client
}

// NewOllamaProvider creates an Ollama-backed embedding provider. dimension
// is the model's fixed output dimensionality; maxChars bounds input length
// to keep cost and latency in check.
func NewOllamaProvider(cfg OllamaEndpointConfig, dimension, maxChars int) *OllamaProvider {
	return &OllamaProvider{
		cfg:        cfg,
		dimension:  dimension,
		maxChars:   maxChars,
		httpClient: &http.Client{},
	}
}

// ModelName returns the embedding model identifier.
func (o *OllamaProvider) ModelName() string {
	return o.cfg.Model
}

// Dimension returns the fixed output dimensionality.
func (o *OllamaProvider) Dimension() int {
	return o.dimension
}

// Embed generates a vector embedding for the given text.
func (o *OllamaProvider) Embed(ctx context.Context, text string) (domain.Vector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, port.ErrEmptyInput
	}

	vectors, err := o.embed(ctx, []string{o.clip(text)})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", port.ErrInvalidEmbeddingShape, len(vectors))
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call. Every
// text must be non-blank; a single blank entry rejects the whole batch
// before any network call.
func (o *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, port.ErrEmptyInput
	}
	clipped := make([]string, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: batch entry %d", port.ErrEmptyInput, i)
		}
		clipped[i] = o.clip(t)
	}

	vectors, err := o.embed(ctx, clipped)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", port.ErrInvalidEmbeddingShape, len(texts), len(vectors))
	}
	return vectors, nil
}

// embed performs the provider call and validates every returned vector.
func (o *OllamaProvider) embed(ctx context.Context, input []string) ([]domain.Vector, error) {
	payload := map[string]interface{}{
		"model": o.cfg.Model,
		"input": input,
	}

	body, err := o.post(ctx, "/api/embed", payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrProviderUnavailable, err)
	}

	var resp struct {
		Embeddings []domain.Vector `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", port.ErrInvalidEmbeddingShape, err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: empty response", port.ErrInvalidEmbeddingShape)
	}

	for i, v := range resp.Embeddings {
		if len(v) != o.dimension {
			slog.Warn("embedding dimension mismatch",
				"model", o.cfg.Model, "want", o.dimension, "got", len(v))
			return nil, fmt.Errorf("%w: dimension %d, want %d", port.ErrInvalidEmbeddingShape, len(v), o.dimension)
		}
		for _, x := range v {
			if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("%w: non-finite value in embedding %d", port.ErrInvalidEmbeddingShape, i)
			}
		}
	}
	return resp.Embeddings, nil
}

// clip truncates text to the configured input cap.
func (o *OllamaProvider) clip(text string) string {
	if o.maxChars > 0 && len(text) > o.maxChars {
		return text[:o.maxChars]
	}
	return text
}

// post is a helper for POST requests to the embed endpoint (with optional bearer token).
func (o *OllamaProvider) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.Token)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
