package processor

import (
	"context"
	"strings"
	"testing"

	"github.com/sweetpotato0/raggate/errors"
	"github.com/sweetpotato0/raggate/parser"
)

type stubEmbedder struct {
	calls int
	fail  bool
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.fail {
		return nil, errors.New(errors.CodeAPIError, "embedding backend down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return 3 }
func (s *stubEmbedder) Model() string  { return "stub" }

func newProcessor(emb *stubEmbedder) *Processor {
	return New(parser.NewRegistry(), emb)
}

func TestProcess(t *testing.T) {
	t.Run("embeds all chunks in one pass", func(t *testing.T) {
		emb := &stubEmbedder{}
		p := newProcessor(emb)

		files := []FileInput{
			{Name: "a.txt", Data: []byte(strings.Repeat("alpha beta gamma. ", 100))},
			{Name: "b.md", Data: []byte("# Title\n\n" + strings.Repeat("delta epsilon. ", 100))},
		}
		result, err := p.Process(context.Background(), files, Options{})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(result.Documents) != 2 {
			t.Fatalf("Expected 2 documents, got %d", len(result.Documents))
		}
		if emb.calls != 1 {
			t.Errorf("Expected a single embedding call, got %d", emb.calls)
		}
		for _, doc := range result.Documents {
			for _, c := range doc.Chunks {
				if len(c.Embedding) != 3 {
					t.Fatalf("Expected embedded chunk, got %v", c.Embedding)
				}
			}
		}
		if result.TotalChunks < 2 {
			t.Errorf("Expected multiple chunks, got %d", result.TotalChunks)
		}
	})

	t.Run("bad file does not sink the batch", func(t *testing.T) {
		emb := &stubEmbedder{}
		p := newProcessor(emb)

		files := []FileInput{
			{Name: "good.txt", Data: []byte("some perfectly fine text content")},
			{Name: "bad.docx", Data: []byte("this is not a zip archive")},
		}
		result, err := p.Process(context.Background(), files, Options{})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(result.Documents) != 1 {
			t.Errorf("Expected 1 document, got %d", len(result.Documents))
		}
		if len(result.Failures) != 1 {
			t.Fatalf("Expected 1 failure, got %d", len(result.Failures))
		}
		if result.Failures[0].Code != errors.CodeFileCorrupted {
			t.Errorf("Expected FILE_CORRUPTED, got %s", result.Failures[0].Code)
		}
	})

	t.Run("all failures reported as parsing error", func(t *testing.T) {
		p := newProcessor(&stubEmbedder{})
		files := []FileInput{
			{Name: "junk.docx", Data: []byte("not a zip")},
		}
		_, err := p.Process(context.Background(), files, Options{})
		if errors.CodeOf(err) != errors.CodeParsing {
			t.Errorf("Expected PARSING_ERROR, got %v", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		p := newProcessor(&stubEmbedder{})

		if _, err := p.Process(context.Background(), nil, Options{}); errors.CodeOf(err) != errors.CodeValidation {
			t.Errorf("Expected VALIDATION_ERROR for empty batch, got %v", err)
		}

		many := make([]FileInput, MaxFilesPerRequest+1)
		for i := range many {
			many[i] = FileInput{Name: "f.txt", Data: []byte("x")}
		}
		if _, err := p.Process(context.Background(), many, Options{}); errors.CodeOf(err) != errors.CodeValidation {
			t.Errorf("Expected VALIDATION_ERROR for too many files, got %v", err)
		}

		empty := []FileInput{{Name: "empty.txt", Data: nil}}
		if _, err := p.Process(context.Background(), empty, Options{}); errors.CodeOf(err) != errors.CodeValidation {
			t.Errorf("Expected VALIDATION_ERROR for empty file, got %v", err)
		}

		unnamed := []FileInput{{Name: "  ", Data: []byte("content")}}
		if _, err := p.Process(context.Background(), unnamed, Options{}); errors.CodeOf(err) != errors.CodeValidation {
			t.Errorf("Expected VALIDATION_ERROR for unnamed file, got %v", err)
		}
	})

	t.Run("embedding failure fails the batch", func(t *testing.T) {
		p := newProcessor(&stubEmbedder{fail: true})
		files := []FileInput{{Name: "a.txt", Data: []byte("content to embed")}}
		_, err := p.Process(context.Background(), files, Options{})
		if errors.CodeOf(err) != errors.CodeEmbedding {
			t.Errorf("Expected EMBEDDING_ERROR, got %v", err)
		}
	})
}
