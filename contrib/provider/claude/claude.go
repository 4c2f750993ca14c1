// Package claude implements the completion client against the Anthropic
// messages API.
package claude

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/sweetpotato0/raggate/errors"
	"github.com/sweetpotato0/raggate/provider"
)

const defaultMaxTokens = 1000

// Client calls the Anthropic messages endpoint.
type Client struct {
	client       anthropic.Client
	defaultModel string
}

// New creates a Claude completion client.
func New(apiKey, baseURL, defaultModel string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if defaultModel == "" {
		defaultModel = "claude-3-5-sonnet-20241022"
	}
	return &Client{
		client:       anthropic.NewClient(opts...),
		defaultModel: defaultModel,
	}
}

func (c *Client) Name() string { return "claude" }

// Complete runs a single message generation.
func (c *Client) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = param.NewOpt(req.TopP)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errors.New(errors.CodeAPIError, "claude returned no text content")
	}

	return &provider.Response{
		Text: text.String(),
		Usage: provider.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		FinishReason: string(msg.StopReason),
	}, nil
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if stderrors.As(err, &apiErr) {
		return provider.ClassifyStatus("claude", apiErr.StatusCode, apiErr.Error(), err)
	}
	return provider.ClassifyError("claude", err)
}
