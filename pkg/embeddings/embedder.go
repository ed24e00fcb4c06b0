// Package embeddings provides text embedding backends and the fixed-width
// gateway that normalizes their output for storage.
package embeddings

import "context"

// Embedder produces vector embeddings at the backend model's native width.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
