// Package rag conducts the retrieval flow: files go through the processor
// into the vector index, and queries come back as ranked context ready for a
// completion prompt. Generation itself belongs to the caller so the fallback
// policy stays outside the pipeline.
package rag

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sweetpotato0/raggate/document"
	"github.com/sweetpotato0/raggate/embedder"
	"github.com/sweetpotato0/raggate/errors"
	"github.com/sweetpotato0/raggate/pkg/logging"
	"github.com/sweetpotato0/raggate/processor"
	"github.com/sweetpotato0/raggate/vector"
)

// Config tunes the pipeline. UpdateConfig swaps it atomically at runtime.
type Config struct {
	ChunkSize          int           `json:"chunkSize"`
	ChunkOverlap       int           `json:"chunkOverlap"`
	TopK               int           `json:"topK"`
	MinSimilarity      float64       `json:"minSimilarity"`
	EmbeddingModel     string        `json:"embeddingModel"`
	EmbeddingDimension int           `json:"embeddingDimension"`
	MaxDocuments       int           `json:"maxDocuments"`
	CacheEmbeddings    bool          `json:"cacheEmbeddings"`
	SimilarityMetric   vector.Metric `json:"similarityMetric"`
}

// DefaultConfig returns the retrieval defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:          600,
		ChunkOverlap:       100,
		TopK:               5,
		MinSimilarity:      0.3,
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: 1536,
		MaxDocuments:       10,
		CacheEmbeddings:    true,
		SimilarityMetric:   vector.MetricCosine,
	}
}

// QueryRequest is one retrieval call. Documents, when present, are ingested
// before searching so a single request can carry its own corpus.
type QueryRequest struct {
	Question      string
	Documents     []processor.FileInput
	InlineContext string

	// Per-request overrides; zero values fall back to the pipeline config.
	TopK          int
	MinSimilarity *float64
	DocumentIDs   []string
	FileTypes     []document.FileType
}

// Source summarizes where one retrieved chunk came from.
type Source struct {
	FileName    string  `json:"fileName"`
	FileType    string  `json:"fileType"`
	ChunkIndex  int     `json:"chunkIndex"`
	TotalChunks int     `json:"totalChunks"`
	Score       float64 `json:"score"`
}

// Metrics are the retrieval quality numbers attached to each response.
// Faithfulness and answer relevance belong to post-generation evaluation and
// stay unset here.
type Metrics struct {
	ChunksUsed            int     `json:"chunksUsed"`
	AverageRetrievalScore float64 `json:"averageRetrievalScore"`
	ContextRelevance      float64 `json:"contextRelevance"`
}

// Timing reports where the milliseconds went.
type Timing struct {
	RetrievalMs int64 `json:"retrievalMs"`
	TotalMs     int64 `json:"totalMs"`
}

// QueryResult is the retrieval envelope. Answer stays empty; the caller fills
// it after generation.
type QueryResult struct {
	Answer          string                  `json:"answer"`
	Context         string                  `json:"-"`
	RetrievedChunks []vector.RetrievedChunk `json:"retrievedChunks"`
	Sources         []Source                `json:"sources"`
	Metrics         Metrics                 `json:"metrics"`
	Timing          Timing                  `json:"timing"`
}

// Pipeline owns the index and the retrieval configuration.
type Pipeline struct {
	mu        sync.RWMutex
	cfg       Config
	index     *vector.Index
	embedder  embedder.Embedder
	processor *processor.Processor
	populated bool
	logger    *slog.Logger
}

// New creates a pipeline. The index dimension and metric come from cfg.
func New(cfg Config, emb embedder.Embedder, proc *processor.Processor) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.EmbeddingDimension <= 0 {
		cfg.EmbeddingDimension = emb.Dimension()
	}
	if !cfg.SimilarityMetric.Valid() {
		cfg.SimilarityMetric = vector.MetricCosine
	}
	return &Pipeline{
		cfg:       cfg,
		index:     vector.NewIndex(cfg.EmbeddingDimension, cfg.SimilarityMetric),
		embedder:  emb,
		processor: proc,
		logger:    logging.WithComponent("rag"),
	}
}

// IndexFiles ingests files through the processor and adds the resulting
// documents to the index.
func (p *Pipeline) IndexFiles(ctx context.Context, files []processor.FileInput) (*processor.Result, error) {
	cfg := p.Config()
	result, err := p.processor.Process(ctx, files, processor.Options{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}
	docs := make([]document.Document, len(result.Documents))
	for i, d := range result.Documents {
		docs[i] = *d
	}
	if err := p.index.AddDocuments(docs); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.populated = true
	p.mu.Unlock()
	p.logger.Info("files indexed",
		slog.Int("documents", len(result.Documents)),
		slog.Int("chunks", result.TotalChunks))
	return result, nil
}

// Query retrieves context for a question. When the index is empty the request
// must carry its own documents, otherwise the call fails with NO_DOCUMENTS.
func (p *Pipeline) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	started := time.Now()
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, errors.New(errors.CodeValidation, "question cannot be empty")
	}

	if !p.Populated() {
		if len(req.Documents) == 0 {
			return nil, errors.New(errors.CodeNoDocuments, "no documents indexed and none provided")
		}
		if _, err := p.IndexFiles(ctx, req.Documents); err != nil {
			return nil, err
		}
	} else if len(req.Documents) > 0 {
		if _, err := p.IndexFiles(ctx, req.Documents); err != nil {
			return nil, err
		}
	}

	cfg := p.Config()
	retrievalStart := time.Now()
	queryVec, err := embedder.Embed(ctx, p.embedder, question)
	if err != nil {
		return nil, errors.Wrap(errors.CodeEmbedding, "embed query", err)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = cfg.TopK
	}
	minSim := cfg.MinSimilarity
	if req.MinSimilarity != nil {
		minSim = *req.MinSimilarity
	}

	searchResult, err := p.index.Search(vector.Query{
		Text:          question,
		Embedding:     queryVec,
		TopK:          topK,
		MinSimilarity: minSim,
		DocumentIDs:   req.DocumentIDs,
		FileTypes:     req.FileTypes,
	})
	if err != nil {
		return nil, err
	}
	retrievalMs := time.Since(retrievalStart).Milliseconds()

	retrieved := searchResult.Results
	result := &QueryResult{
		Context:         BuildContext(retrieved, req.InlineContext),
		RetrievedChunks: retrieved,
		Sources:         sources(retrieved),
		Metrics:         metrics(retrieved),
		Timing: Timing{
			RetrievalMs: retrievalMs,
			TotalMs:     time.Since(started).Milliseconds(),
		},
	}
	p.logger.Info("query retrieved",
		slog.Int("chunks", len(retrieved)),
		slog.Int64("retrieval_ms", retrievalMs))
	return result, nil
}

// Populated reports whether any documents have been indexed.
func (p *Pipeline) Populated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.populated
}

// ClearIndex removes every document.
func (p *Pipeline) ClearIndex() {
	p.index.Clear()
	p.mu.Lock()
	p.populated = false
	p.mu.Unlock()
	p.logger.Warn("index cleared")
}

// Stats exposes the underlying index statistics.
func (p *Pipeline) Stats() vector.Stats {
	return p.index.Stats()
}

// Config returns a copy of the active configuration.
func (p *Pipeline) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// UpdateConfig swaps retrieval tunables. Dimension and metric are fixed at
// construction and ignored here.
func (p *Pipeline) UpdateConfig(cfg Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cfg.ChunkSize > 0 {
		p.cfg.ChunkSize = cfg.ChunkSize
	}
	if cfg.ChunkOverlap >= 0 {
		p.cfg.ChunkOverlap = cfg.ChunkOverlap
	}
	if cfg.TopK > 0 {
		p.cfg.TopK = cfg.TopK
	}
	if cfg.MinSimilarity > 0 {
		p.cfg.MinSimilarity = cfg.MinSimilarity
	}
	if cfg.MaxDocuments > 0 {
		p.cfg.MaxDocuments = cfg.MaxDocuments
	}
}

// RemoveDocuments drops documents from the index by id.
func (p *Pipeline) RemoveDocuments(ids ...string) {
	p.index.RemoveDocuments(ids...)
}

// Documents lists the indexed documents.
func (p *Pipeline) Documents() []document.Document {
	return p.index.GetAllDocuments()
}

func sources(retrieved []vector.RetrievedChunk) []Source {
	out := make([]Source, len(retrieved))
	for i, rc := range retrieved {
		out[i] = Source{
			FileName:    rc.Chunk.Source.FileName,
			FileType:    string(rc.Chunk.Source.FileType),
			ChunkIndex:  rc.Chunk.Source.ChunkIndex,
			TotalChunks: rc.Chunk.Source.TotalChunks,
			Score:       rc.Score,
		}
	}
	return out
}

func metrics(retrieved []vector.RetrievedChunk) Metrics {
	m := Metrics{ChunksUsed: len(retrieved)}
	if len(retrieved) == 0 {
		return m
	}
	var sum float64
	for _, rc := range retrieved {
		sum += rc.Score
	}
	m.AverageRetrievalScore = sum / float64(len(retrieved))
	m.ContextRelevance = m.AverageRetrievalScore
	return m
}
