package tokenizer

import (
	"strings"
	"testing"

	"github.com/sweetpotato0/raggate/errors"
)

func TestCount(t *testing.T) {
	tok := New("gpt-4o-mini")

	t.Run("counts tokens", func(t *testing.T) {
		n := tok.Count("hello world")
		if n < 1 || n > 5 {
			t.Errorf("Expected small token count for two words, got %d", n)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		if n := tok.Count(""); n != 0 {
			t.Errorf("Expected 0 tokens, got %d", n)
		}
	})
}

func TestContextWindow(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"gpt-4o-mini", 128000},
		{"claude-3-5-sonnet-20241022", 200000},
		{"some-unknown-model", defaultContextWindow},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := New(tt.model).ContextWindow(); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestCheckFits(t *testing.T) {
	tok := New("gpt-3.5-turbo")

	t.Run("small prompt fits", func(t *testing.T) {
		if err := tok.CheckFits("what is the capital of France?", 1000); err != nil {
			t.Errorf("Expected fit, got %v", err)
		}
	})

	t.Run("oversized prompt rejected", func(t *testing.T) {
		huge := strings.Repeat("lorem ipsum dolor sit amet ", 20000)
		err := tok.CheckFits(huge, 1000)
		if errors.CodeOf(err) != errors.CodeContextTooLarge {
			t.Errorf("Expected CONTEXT_TOO_LARGE, got %v", err)
		}
	})
}
