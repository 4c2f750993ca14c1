// Package embedder defines the embedding client contract and a caching
// wrapper shared by all providers.
package embedder

import (
	"context"

	"github.com/sweetpotato0/raggate/errors"
)

// Embedder converts text into vector embeddings.
type Embedder interface {
	// EmbedBatch returns one embedding per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is the embedding vector size.
	Dimension() int
	// Model names the embedding model, used for cache keying.
	Model() string
}

// Embed is a single-text convenience over EmbedBatch.
func Embed(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New(errors.CodeEmbedding, "no embedding returned")
	}
	return vectors[0], nil
}
