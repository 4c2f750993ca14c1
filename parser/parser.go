// Package parser turns uploaded files into normalized documents. A registry
// dispatches each file to a format-specific parser by extension first and MIME
// type second; each parser produces UTF-8 text plus format metadata.
package parser

import (
	"context"
	"time"

	"github.com/sweetpotato0/raggate/chunking"
	"github.com/sweetpotato0/raggate/document"
	"github.com/sweetpotato0/raggate/errors"
)

// DefaultMaxFileSize bounds uploads at 10 MiB.
const DefaultMaxFileSize = 10 << 20

// CSVOptions tunes the CSV parser.
type CSVOptions struct {
	Delimiter      string `json:"delimiter,omitempty"`
	HasHeader      bool   `json:"hasHeader"`
	SkipEmptyLines bool   `json:"skipEmptyLines"`
}

// Options controls parsing. Zero values fall back to defaults via
// DefaultOptions.
type Options struct {
	MaxFileSize        int64
	EnableChunking     bool
	ChunkSize          int
	ChunkOverlap       int
	ExtractMetadata    bool
	Encoding           string
	PreserveFormatting bool
	CSV                CSVOptions
}

// DefaultOptions returns the documented option defaults.
func DefaultOptions() Options {
	return Options{
		MaxFileSize:     DefaultMaxFileSize,
		ChunkSize:       4000,
		ChunkOverlap:    200,
		ExtractMetadata: true,
		CSV:             CSVOptions{HasHeader: true, SkipEmptyLines: true},
	}
}

// Info describes a registered parser for the supported-formats listing.
type Info struct {
	Extensions  []string `json:"extensions"`
	MimeTypes   []string `json:"mimeTypes"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
}

// Parser extracts text and metadata from one file format.
type Parser interface {
	Type() document.FileType
	Info() Info
	Parse(ctx context.Context, data []byte, fileName string, opts Options) (*document.Document, error)
}

// Registry dispatches files to format parsers.
type Registry struct {
	parsers map[document.FileType]Parser
	order   []document.FileType
}

// NewRegistry returns a registry with every built-in format registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[document.FileType]Parser)}
	r.Register(NewTextParser())
	r.Register(NewMarkdownParser())
	r.Register(NewCSVParser())
	r.Register(NewPDFParser())
	r.Register(NewDOCXParser())
	r.Register(NewHTMLParser())
	return r
}

// Register adds a parser, replacing any previous parser for the same type.
func (r *Registry) Register(p Parser) {
	if _, exists := r.parsers[p.Type()]; !exists {
		r.order = append(r.order, p.Type())
	}
	r.parsers[p.Type()] = p
}

// Supported lists the registered parsers in registration order.
func (r *Registry) Supported() []Info {
	out := make([]Info, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.parsers[t].Info())
	}
	return out
}

// Parse validates size, detects the format, and runs the matching parser.
func (r *Registry) Parse(ctx context.Context, data []byte, fileName, mimeType string, opts Options) (*document.Document, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if int64(len(data)) > opts.MaxFileSize {
		return nil, errors.Newf(errors.CodeValidation,
			"file size %d exceeds limit %d", len(data), opts.MaxFileSize).
			WithDetail("maxFileSizeBytes", opts.MaxFileSize)
	}

	det := Detect(data, fileName, mimeType)
	if det.Type == "" {
		return nil, errors.Newf(errors.CodeUnsupportedFileType,
			"no parser for file %q", fileName).WithDetail("mimeType", mimeType)
	}
	p, ok := r.parsers[det.Type]
	if !ok {
		return nil, errors.Newf(errors.CodeUnsupportedFileType,
			"no parser registered for type %s", det.Type)
	}

	doc, err := p.Parse(ctx, data, fileName, opts)
	if err != nil {
		return nil, err
	}
	doc.ID = document.NewDocumentID()
	doc.FileName = fileName
	doc.FileType = det.Type
	if doc.MimeType == "" {
		doc.MimeType = det.MimeType
	}
	doc.Metadata.UploadedAt = time.Now().UTC()
	doc.Metadata.FileSize = len(data)
	doc.Metadata.CharacterCount = len([]rune(doc.Content))
	if doc.Metadata.Custom == nil {
		doc.Metadata.Custom = make(map[string]any)
	}
	doc.Metadata.Custom["detectionConfidence"] = det.Confidence

	if opts.EnableChunking {
		attachChunks(doc, opts)
	}
	return doc, nil
}

// attachChunks splits the extracted text using the requested chunk geometry.
// Embeddings are filled in later by the document processor.
func attachChunks(doc *document.Document, opts Options) {
	size := opts.ChunkSize
	if size <= 0 {
		size = 4000
	}
	overlap := opts.ChunkOverlap
	if overlap < 0 {
		overlap = 200
	}
	pieces := chunking.New(
		chunking.WithChunkSize(size),
		chunking.WithOverlap(overlap),
	).Split(doc.Content)

	doc.Chunks = make([]document.Chunk, len(pieces))
	for i, piece := range pieces {
		doc.Chunks[i] = document.Chunk{
			ID:   document.ChunkID(doc.ID, i),
			Text: piece.Text,
			Source: document.ChunkSource{
				FileName:    doc.FileName,
				FileType:    doc.FileType,
				ChunkIndex:  i,
				TotalChunks: len(pieces),
				StartOffset: piece.StartOffset,
				EndOffset:   piece.EndOffset,
			},
		}
	}
}
