// Package gemini implements the embedding client against the Google
// generative language API.
package gemini

import (
	"context"
	stderrors "errors"

	"github.com/google/generative-ai-go/genai"
	"github.com/sweetpotato0/raggate/embedder"
	"github.com/sweetpotato0/raggate/errors"
	"github.com/sweetpotato0/raggate/provider"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Embedder calls the Gemini batch embedding endpoint.
type Embedder struct {
	client    *genai.Client
	model     string
	dimension int
}

// New creates a Gemini embedder. The caller owns the lifecycle and should
// Close when done.
func New(ctx context.Context, apiKey, model string, dimension int) (embedder.Embedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(errors.CodeConfig, "create gemini client", err)
	}
	if model == "" {
		model = "text-embedding-004"
	}
	return &Embedder{client: client, model: model, dimension: dimension}, nil
}

func (e *Embedder) Dimension() int { return e.dimension }
func (e *Embedder) Model() string  { return e.model }

// Close releases the underlying API client.
func (e *Embedder) Close() error {
	return e.client.Close()
}

// EmbedBatch converts texts to embeddings, one vector per input in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := e.client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		var apiErr *googleapi.Error
		if stderrors.As(err, &apiErr) {
			return nil, provider.ClassifyStatus("gemini", apiErr.Code, apiErr.Message, err)
		}
		return nil, provider.ClassifyError("gemini", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, errors.Newf(errors.CodeEmbedding, "expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vec := make([]float32, e.dimension)
		copy(vec, emb.Values)
		out[i] = vec
	}
	return out, nil
}
