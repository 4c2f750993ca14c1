// Package gemini implements the completion client against the Google
// generative language API.
package gemini

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sweetpotato0/raggate/errors"
	"github.com/sweetpotato0/raggate/provider"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Client calls the Gemini generateContent endpoint.
type Client struct {
	client       *genai.Client
	defaultModel string
}

// New creates a Gemini completion client. The caller owns the lifecycle and
// should Close when done.
func New(ctx context.Context, apiKey, defaultModel string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(errors.CodeConfig, "create gemini client", err)
	}
	if defaultModel == "" {
		defaultModel = "gemini-1.5-flash"
	}
	return &Client{client: client, defaultModel: defaultModel}, nil
}

func (c *Client) Name() string { return "gemini" }

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Complete runs a single content generation.
func (c *Client) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = c.defaultModel
	}

	model := c.client.GenerativeModel(modelName)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.TopP > 0 {
		model.SetTopP(float32(req.TopP))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New(errors.CodeAPIError, "gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	out := &provider.Response{
		Text:         text.String(),
		FinishReason: strings.ToLower(candidate.FinishReason.String()),
	}
	if resp.UsageMetadata != nil {
		out.Usage = provider.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		return provider.ClassifyStatus("gemini", apiErr.Code, apiErr.Message, err)
	}
	return provider.ClassifyError("gemini", err)
}
