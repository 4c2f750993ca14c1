// Package tokenizer estimates prompt sizes so oversized requests fail before
// they reach a provider.
package tokenizer

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sweetpotato0/raggate/errors"
)

const fallbackEncoding = "cl100k_base"

// contextWindows holds known model context limits in tokens. Models not
// listed fall back to a conservative default.
var contextWindows = map[string]int{
	"gpt-4o":                 128000,
	"gpt-4o-mini":            128000,
	"gpt-4-turbo":            128000,
	"gpt-3.5-turbo":          16385,
	"claude-3-5-sonnet":      200000,
	"claude-3-5-haiku":       200000,
	"claude-3-opus":          200000,
	"gemini-1.5-pro":         1048576,
	"gemini-1.5-flash":       1048576,
	"text-embedding-3-small": 8191,
	"text-embedding-3-large": 8191,
}

const defaultContextWindow = 8192

// Tokenizer counts tokens for one model. When no encoding is available it
// falls back to a four-characters-per-token estimate.
type Tokenizer struct {
	enc   *tiktoken.Tiktoken
	model string
}

// New creates a tokenizer for the given model. Unknown models still work
// through the heuristic estimator.
func New(model string) *Tokenizer {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			enc = nil
		}
	}
	return &Tokenizer{enc: enc, model: model}
}

// Count returns the token count for text.
func (t *Tokenizer) Count(text string) int {
	if t.enc == nil {
		return estimate(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// ContextWindow reports the token limit of the tokenizer's model. Versioned
// model names match their base entry by prefix.
func (t *Tokenizer) ContextWindow() int {
	if limit, ok := contextWindows[t.model]; ok {
		return limit
	}
	for name, limit := range contextWindows {
		if strings.HasPrefix(t.model, name) {
			return limit
		}
	}
	return defaultContextWindow
}

// CheckFits verifies that a prompt plus the requested completion budget fits
// the model's context window.
func (t *Tokenizer) CheckFits(prompt string, maxTokens int) error {
	used := t.Count(prompt) + maxTokens
	limit := t.ContextWindow()
	if used <= limit {
		return nil
	}
	return errors.Newf(errors.CodeContextTooLarge,
		"prompt requires %d tokens but %s allows %d", used, t.model, limit).
		WithDetail("promptTokens", used-maxTokens).
		WithDetail("maxTokens", maxTokens).
		WithDetail("contextWindow", limit)
}

func estimate(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}
