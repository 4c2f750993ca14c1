// Package openai implements the embedding client against the OpenAI API.
package openai

import (
	"context"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sweetpotato0/raggate/embedder"
	"github.com/sweetpotato0/raggate/errors"
	"github.com/sweetpotato0/raggate/provider"
)

// Embedder calls the OpenAI embeddings endpoint.
type Embedder struct {
	client    openaisdk.Client
	model     openaisdk.EmbeddingModel
	dimension int
}

// New creates an OpenAI embedder. baseURL is optional and supports
// API-compatible gateways; orgID is optional.
func New(apiKey, baseURL, orgID, model string, dimension int) embedder.Embedder {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if strings.TrimSpace(orgID) != "" {
		opts = append(opts, option.WithOrganization(orgID))
	}
	return &Embedder{
		client:    openaisdk.NewClient(opts...),
		model:     openaisdk.EmbeddingModel(model),
		dimension: dimension,
	}
}

func (e *Embedder) Dimension() int { return e.dimension }
func (e *Embedder) Model() string  { return string(e.model) }

// EmbedBatch converts texts to embeddings, one vector per input in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openaisdk.EmbeddingNewParams{
		Model: e.model,
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}
	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, provider.ClassifyError("openai", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.Newf(errors.CodeEmbedding, "expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for i, emb := range resp.Data {
		out[i] = convertVector(emb.Embedding, e.dimension)
	}
	return out, nil
}

func convertVector(input []float64, expected int) []float32 {
	vec := make([]float32, expected)
	for i := 0; i < len(input) && i < expected; i++ {
		vec[i] = float32(input[i])
	}
	return vec
}
