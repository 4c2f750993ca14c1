// Package chunking splits normalized text into overlapping, boundary-aware
// chunks. Boundaries prefer sentence ends, then word ends, so retrieval atoms
// rarely cut a sentence in half.
package chunking

import "unicode"

// wordScanLimit bounds how far back the word-boundary scan walks.
const wordScanLimit = 100

// Chunk is one emitted window over the input text. Offsets are rune indexes
// into the original text.
type Chunk struct {
	Text        string `json:"text"`
	Index       int    `json:"index"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	IsFirst     bool   `json:"is_first"`
	IsLast      bool   `json:"is_last"`
	Length      int    `json:"length"`
}

// Options controls the chunker.
type Options struct {
	ChunkSize        int
	Overlap          int
	MinChunkSize     int
	BreakAtSentences bool
	BreakAtWords     bool
}

// Option customizes the chunker.
type Option func(*Options)

// WithChunkSize overrides the target chunk size (characters).
func WithChunkSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.ChunkSize = size
		}
	}
}

// WithOverlap configures overlap (characters) between consecutive chunks.
func WithOverlap(overlap int) Option {
	return func(o *Options) {
		if overlap >= 0 {
			o.Overlap = overlap
		}
	}
}

// WithMinChunkSize drops non-final chunks shorter than the given size.
func WithMinChunkSize(size int) Option {
	return func(o *Options) {
		if size >= 0 {
			o.MinChunkSize = size
		}
	}
}

// WithSentenceBreaks toggles snapping chunk ends to sentence boundaries.
func WithSentenceBreaks(enabled bool) Option {
	return func(o *Options) {
		o.BreakAtSentences = enabled
	}
}

// WithWordBreaks toggles snapping chunk ends to word boundaries.
func WithWordBreaks(enabled bool) Option {
	return func(o *Options) {
		o.BreakAtWords = enabled
	}
}

// Chunker windows text into bounded pieces.
type Chunker struct {
	opts Options
}

// New constructs a chunker with the pipeline defaults.
func New(opts ...Option) *Chunker {
	cfg := Options{
		ChunkSize:        600,
		Overlap:          100,
		MinChunkSize:     100,
		BreakAtSentences: true,
		BreakAtWords:     true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = cfg.ChunkSize / 2
	}
	return &Chunker{opts: cfg}
}

// Split produces the chunk sequence for text. Every character of the input is
// covered by at least one emitted range; consecutive chunks overlap by up to
// Options.Overlap characters.
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var out []Chunk
	start := 0
	for start < n {
		end := start + c.opts.ChunkSize
		final := end >= n
		if final {
			end = n
		} else {
			end = c.snapBoundary(runes, start, end)
			final = end >= n
		}

		if length := end - start; length >= c.opts.MinChunkSize || final {
			out = append(out, Chunk{
				Text:        string(runes[start:end]),
				Index:       len(out),
				StartOffset: start,
				EndOffset:   end,
				Length:      length,
			})
		}
		if final {
			break
		}

		next := end - c.opts.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	if len(out) > 0 {
		out[0].IsFirst = true
		out[len(out)-1].IsLast = true
	}
	return out
}

// snapBoundary moves a tentative chunk end back to the nearest sentence or
// word boundary inside the window.
func (c *Chunker) snapBoundary(runes []rune, start, end int) int {
	if c.opts.BreakAtSentences {
		for i := end - 1; i > start; i-- {
			if unicode.IsSpace(runes[i]) && isSentenceEnd(runes[i-1]) {
				return i + 1
			}
		}
	}
	if c.opts.BreakAtWords {
		limit := end - wordScanLimit
		if limit < start {
			limit = start
		}
		for i := end - 1; i > limit; i-- {
			if unicode.IsSpace(runes[i]) {
				return i + 1
			}
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
