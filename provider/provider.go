// Package provider defines the completion client contract shared by the AI
// backends and the error classification that maps their failures onto the
// gateway taxonomy.
package provider

import "context"

// Request is a single completion call. Zero-valued tuning fields mean
// "provider default".
type Request struct {
	System           string
	User             string
	Model            string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Response is a completed generation.
type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// Client generates completions against one AI backend.
type Client interface {
	// Complete runs a single completion. Failures carry taxonomy codes.
	Complete(ctx context.Context, req Request) (*Response, error)
	// Name identifies the backend (openai, gemini, claude).
	Name() string
}
