// Package gemini implements pkg/embeddings' Embedder against the Google
// Gemini embedding API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/coldbrewlabs/engram/pkg/embeddings"
	"github.com/coldbrewlabs/engram/pkg/llm"
)

// DefaultModel is the default embedding model.
const DefaultModel = "text-embedding-004"

// Config holds configuration for the Gemini embedder.
type Config struct {
	// APIKey is the Google AI API key. Required.
	APIKey string

	// Model is the embedding model name. Defaults to DefaultModel.
	Model string
}

// Embedder wraps Gemini's embedding API.
type Embedder struct {
	client *genai.Client
	model  string
}

// NewEmbedder creates a Gemini-backed embedder.
func NewEmbedder(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, llm.ErrUnconfigured
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Embedder{client: client, model: model}, nil
}

// Embed converts text into a vector at the model's native width.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, errors.New("gemini embed: no embedding returned")
	}
	return res.Embedding.Values, nil
}

// Close releases the underlying API client.
func (e *Embedder) Close() error {
	return e.client.Close()
}

var _ embeddings.Embedder = (*Embedder)(nil)
