// Package openai implements the completion client against the OpenAI chat
// completions API.
package openai

import (
	"context"
	stderrors "errors"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/sweetpotato0/raggate/errors"
	"github.com/sweetpotato0/raggate/provider"
)

// Client calls the OpenAI chat completions endpoint.
type Client struct {
	client       openaisdk.Client
	defaultModel string
}

// New creates an OpenAI completion client. baseURL is optional and supports
// API-compatible gateways; orgID is optional.
func New(apiKey, baseURL, orgID, defaultModel string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if strings.TrimSpace(orgID) != "" {
		opts = append(opts, option.WithOrganization(orgID))
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &Client{
		client:       openaisdk.NewClient(opts...),
		defaultModel: defaultModel,
	}
}

func (c *Client) Name() string { return "openai" }

// Complete runs a single chat completion.
func (c *Client) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openaisdk.SystemMessage(req.System))
	}
	messages = append(messages, openaisdk.UserMessage(req.User))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.TopP > 0 {
		params.TopP = param.NewOpt(req.TopP)
	}
	if req.FrequencyPenalty != 0 {
		params.FrequencyPenalty = param.NewOpt(req.FrequencyPenalty)
	}
	if req.PresencePenalty != 0 {
		params.PresencePenalty = param.NewOpt(req.PresencePenalty)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New(errors.CodeAPIError, "openai returned no choices")
	}

	choice := completion.Choices[0]
	return &provider.Response{
		Text: choice.Message.Content,
		Usage: provider.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
		FinishReason: string(choice.FinishReason),
	}, nil
}

func classify(err error) error {
	var apiErr *openaisdk.Error
	if stderrors.As(err, &apiErr) {
		return provider.ClassifyStatus("openai", apiErr.StatusCode, apiErr.Error(), err)
	}
	return provider.ClassifyError("openai", err)
}
