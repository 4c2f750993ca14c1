// Package processor turns uploaded files into embedded documents ready for
// indexing. Files parse concurrently and fail independently; one bad file
// never sinks the batch.
package processor

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/sweetpotato0/raggate/document"
	"github.com/sweetpotato0/raggate/embedder"
	"github.com/sweetpotato0/raggate/errors"
	"github.com/sweetpotato0/raggate/parser"
	"github.com/sweetpotato0/raggate/pkg/logging"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxFilesPerRequest bounds one processing batch.
	MaxFilesPerRequest = 10

	defaultChunkSize    = 600
	defaultChunkOverlap = 100
	parseConcurrency    = 4
)

// FileInput is one uploaded file.
type FileInput struct {
	Name     string
	MimeType string
	Data     []byte
}

// Failure records why one file could not be processed.
type Failure struct {
	FileName string      `json:"fileName"`
	Code     errors.Code `json:"code"`
	Message  string      `json:"message"`
}

// Result is the outcome of one processing batch.
type Result struct {
	Documents   []*document.Document `json:"documents"`
	Failures    []Failure            `json:"failures,omitempty"`
	TotalChunks int                  `json:"totalChunks"`
}

// Options tunes one processing run. Zero values use the retrieval defaults.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

// Processor parses, chunks, and embeds uploaded files.
type Processor struct {
	registry *parser.Registry
	embedder embedder.Embedder
	logger   *slog.Logger
}

// New creates a processor backed by the given parser registry and embedder.
func New(registry *parser.Registry, emb embedder.Embedder) *Processor {
	return &Processor{
		registry: registry,
		embedder: emb,
		logger:   logging.WithComponent("processor"),
	}
}

// Process validates, parses, chunks, and embeds the batch. Parsing runs
// concurrently per file; embedding happens once over every chunk so the
// provider sees a single batched request.
func (p *Processor) Process(ctx context.Context, files []FileInput, opts Options) (*Result, error) {
	if err := validate(files); err != nil {
		return nil, err
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = defaultChunkOverlap
	}

	docs := make([]*document.Document, len(files))
	failures := make([]Failure, 0)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parseConcurrency)
	for i, file := range files {
		g.Go(func() error {
			doc, err := p.parseOne(gctx, file, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e := errors.AsError(err)
				failures = append(failures, Failure{FileName: file.Name, Code: e.Code, Message: e.Message})
				p.logger.Warn("file processing failed",
					slog.String("file", file.Name),
					slog.String("code", string(e.Code)))
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Failures: failures}
	for _, doc := range docs {
		if doc != nil {
			result.Documents = append(result.Documents, doc)
			result.TotalChunks += len(doc.Chunks)
		}
	}
	if len(result.Documents) == 0 {
		return nil, errors.New(errors.CodeParsing, "no files could be processed").
			WithDetail("failures", failures)
	}

	if err := p.embedAll(ctx, result.Documents); err != nil {
		return nil, err
	}
	p.logger.Info("batch processed",
		slog.Int("documents", len(result.Documents)),
		slog.Int("chunks", result.TotalChunks),
		slog.Int("failures", len(failures)))
	return result, nil
}

func validate(files []FileInput) error {
	if len(files) == 0 {
		return errors.New(errors.CodeValidation, "no files provided")
	}
	if len(files) > MaxFilesPerRequest {
		return errors.Newf(errors.CodeValidation, "too many files: %d exceeds limit %d", len(files), MaxFilesPerRequest).
			WithDetail("maxFiles", MaxFilesPerRequest)
	}
	for _, f := range files {
		if strings.TrimSpace(f.Name) == "" {
			return errors.New(errors.CodeValidation, "file has no name")
		}
		if len(f.Data) == 0 {
			return errors.Newf(errors.CodeValidation, "file %q is empty", f.Name)
		}
	}
	return nil
}

func (p *Processor) parseOne(ctx context.Context, file FileInput, opts Options) (*document.Document, error) {
	parseOpts := parser.DefaultOptions()
	parseOpts.EnableChunking = true
	parseOpts.ChunkSize = opts.ChunkSize
	parseOpts.ChunkOverlap = opts.ChunkOverlap

	doc, err := p.registry.Parse(ctx, file.Data, file.Name, file.MimeType, parseOpts)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, errors.Newf(errors.CodeParsing, "file %q produced no text", file.Name)
	}
	return doc, nil
}

// embedAll embeds every chunk of every document in one batched call and
// writes the vectors back in place.
func (p *Processor) embedAll(ctx context.Context, docs []*document.Document) error {
	var texts []string
	for _, doc := range docs {
		for _, chunk := range doc.Chunks {
			texts = append(texts, chunk.Text)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return errors.Wrap(errors.CodeEmbedding, "embed document chunks", err)
	}
	if len(vectors) != len(texts) {
		return errors.Newf(errors.CodeEmbedding, "expected %d embeddings, got %d", len(texts), len(vectors))
	}

	i := 0
	for _, doc := range docs {
		for j := range doc.Chunks {
			doc.Chunks[j].Embedding = vectors[i]
			i++
		}
	}
	return nil
}
