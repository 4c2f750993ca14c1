package chunking

import (
	"strings"
	"testing"
)

func TestSplitEmpty(t *testing.T) {
	ch := New()
	if got := ch.Split(""); got != nil {
		t.Errorf("Expected nil for empty input, got %d chunks", len(got))
	}
}

func TestSplitSingleChunk(t *testing.T) {
	ch := New(WithChunkSize(100), WithOverlap(10))
	chunks := ch.Split("A short paragraph.")
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if !c.IsFirst || !c.IsLast {
		t.Error("Expected single chunk to be both first and last")
	}
	if c.StartOffset != 0 || c.EndOffset != len([]rune("A short paragraph.")) {
		t.Errorf("Expected full coverage, got [%d,%d)", c.StartOffset, c.EndOffset)
	}
}

func TestSplitPrefersSentenceBoundaries(t *testing.T) {
	text := "First sentence ends here. Second sentence is a bit longer and keeps going. Third one closes it."
	ch := New(WithChunkSize(40), WithOverlap(5), WithMinChunkSize(10))
	chunks := ch.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}
	first := chunks[0].Text
	if !strings.HasSuffix(strings.TrimRight(first, " "), "here.") {
		t.Errorf("Expected first chunk to end at sentence boundary, got %q", first)
	}
}

func TestSplitFallsBackToWordBoundaries(t *testing.T) {
	// No sentence punctuation at all.
	text := strings.Repeat("alpha beta gamma delta ", 20)
	ch := New(WithChunkSize(50), WithOverlap(10), WithMinChunkSize(10))
	for _, c := range ch.Split(text) {
		if c.IsLast {
			continue
		}
		if !strings.HasSuffix(c.Text, " ") {
			t.Errorf("Expected non-final chunk to end after whitespace, got %q", c.Text)
		}
	}
}

func TestSplitCoverage(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 30)
	runes := []rune(text)
	ch := New(WithChunkSize(120), WithOverlap(30), WithMinChunkSize(20))
	chunks := ch.Split(text)

	covered := make([]bool, len(runes))
	for _, c := range chunks {
		if c.StartOffset < 0 || c.EndOffset > len(runes) || c.StartOffset >= c.EndOffset {
			t.Fatalf("Invalid range [%d,%d)", c.StartOffset, c.EndOffset)
		}
		if string(runes[c.StartOffset:c.EndOffset]) != c.Text {
			t.Fatalf("Chunk text does not match its offsets at index %d", c.Index)
		}
		for i := c.StartOffset; i < c.EndOffset; i++ {
			covered[i] = true
		}
	}
	for i, ok := range covered {
		if !ok {
			t.Fatalf("Character %d not covered by any chunk", i)
		}
	}
}

func TestSplitIndexesAreSequential(t *testing.T) {
	text := strings.Repeat("Sentence number one. ", 50)
	chunks := New(WithChunkSize(100), WithOverlap(20)).Split(text)
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("Expected index %d, got %d", i, c.Index)
		}
	}
	if !chunks[0].IsFirst {
		t.Error("Expected first chunk to be marked IsFirst")
	}
	if !chunks[len(chunks)-1].IsLast {
		t.Error("Expected last chunk to be marked IsLast")
	}
}

func TestSplitAlwaysMakesProgress(t *testing.T) {
	// Overlap equal to chunk size would stall; New clamps it.
	text := strings.Repeat("x", 500)
	chunks := New(WithChunkSize(100), WithOverlap(100), WithMinChunkSize(0), WithSentenceBreaks(false), WithWordBreaks(false)).Split(text)
	if len(chunks) == 0 {
		t.Fatal("Expected chunks")
	}
	last := chunks[len(chunks)-1]
	if last.EndOffset != 500 {
		t.Errorf("Expected final chunk to reach end of text, got %d", last.EndOffset)
	}
}
