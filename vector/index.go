package vector

import (
	"sort"
	"sync"

	"github.com/sweetpotato0/raggate/document"
	"github.com/sweetpotato0/raggate/errors"
)

// Query describes one top-K similarity search.
type Query struct {
	Text           string
	Embedding      []float32
	TopK           int
	MinSimilarity  float64
	DocumentIDs    []string
	FileTypes      []document.FileType
	MetadataFilter map[string]any
}

// RetrievedChunk is one search hit.
type RetrievedChunk struct {
	Chunk document.Chunk `json:"chunk"`
	Score float64        `json:"score"`
	Rank  int            `json:"rank"`
}

// Result is the outcome of a search. Results are ordered by score descending,
// ties broken by chunk id ascending.
type Result struct {
	Results     []RetrievedChunk `json:"results"`
	TotalChunks int              `json:"total_chunks"`
}

// Stats summarizes index contents.
type Stats struct {
	DocumentCount int    `json:"document_count"`
	ChunkCount    int    `json:"chunk_count"`
	Dimension     int    `json:"dimension"`
	Metric        Metric `json:"metric"`
}

// Index is the in-memory store of documents, chunks, and their embeddings.
// Reads may run concurrently; writes are serialized by the embedded RWMutex.
type Index struct {
	mu         sync.RWMutex
	dimension  int
	metric     Metric
	documents  map[string]document.Document
	chunks     map[string]document.Chunk
	byDocument map[string][]string // document id -> chunk ids, insertion order
}

// NewIndex creates an empty index for vectors of the given dimension.
func NewIndex(dimension int, metric Metric) *Index {
	if !metric.Valid() {
		metric = MetricCosine
	}
	return &Index{
		dimension:  dimension,
		metric:     metric,
		documents:  make(map[string]document.Document),
		chunks:     make(map[string]document.Chunk),
		byDocument: make(map[string][]string),
	}
}

// AddDocuments inserts documents and their chunks. Insertion is all-or-nothing
// per document and best-effort across documents: a document whose chunks fail
// validation is skipped entirely while the rest are stored, and the first
// violation is reported.
func (idx *Index) AddDocuments(docs []document.Document) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var firstErr error
	for _, doc := range docs {
		if err := idx.validateDocument(doc); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		clone := doc.Clone()
		ids := make([]string, 0, len(clone.Chunks))
		for _, chunk := range clone.Chunks {
			idx.chunks[chunk.ID] = chunk
			ids = append(ids, chunk.ID)
		}
		idx.byDocument[clone.ID] = ids
		idx.documents[clone.ID] = clone
	}
	return firstErr
}

func (idx *Index) validateDocument(doc document.Document) error {
	if doc.ID == "" {
		return errors.New(errors.CodeVectorStore, "document has no id")
	}
	for _, chunk := range doc.Chunks {
		if len(chunk.Embedding) == 0 {
			return errors.Newf(errors.CodeVectorStore, "chunk %s has no embedding", chunk.ID)
		}
		if len(chunk.Embedding) != idx.dimension {
			return errors.Newf(errors.CodeVectorStore,
				"chunk %s embedding dimension %d does not match index dimension %d",
				chunk.ID, len(chunk.Embedding), idx.dimension)
		}
	}
	return nil
}

// RemoveDocuments deletes documents and all of their chunks. Unknown ids are
// ignored.
func (idx *Index) RemoveDocuments(ids ...string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range ids {
		for _, chunkID := range idx.byDocument[id] {
			delete(idx.chunks, chunkID)
		}
		delete(idx.byDocument, id)
		delete(idx.documents, id)
	}
}

// Search runs a top-K similarity search under the index metric.
func (idx *Index) Search(q Query) (*Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(q.Embedding) != idx.dimension {
		return nil, errors.Newf(errors.CodeRetrieval,
			"query embedding dimension %d does not match index dimension %d",
			len(q.Embedding), idx.dimension)
	}
	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}

	candidates := idx.candidateChunks(q)
	hits := make([]RetrievedChunk, 0, len(candidates))
	for _, chunk := range candidates {
		score := idx.metric.Score(q.Embedding, chunk.Embedding)
		if score < q.MinSimilarity {
			continue
		}
		hits = append(hits, RetrievedChunk{Chunk: chunk, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	for i := range hits {
		hits[i].Rank = i
		hits[i].Chunk = hits[i].Chunk.Clone()
	}

	return &Result{Results: hits, TotalChunks: len(idx.chunks)}, nil
}

// candidateChunks applies the document-id, file-type, and metadata filters.
// The per-document chunk-id index keeps the document filter linear in the
// number of selected chunks.
func (idx *Index) candidateChunks(q Query) []document.Chunk {
	var out []document.Chunk
	appendIfMatch := func(chunk document.Chunk) {
		if !matchFileType(chunk, q.FileTypes) {
			return
		}
		if !matchMetadata(chunk, q.MetadataFilter) {
			return
		}
		out = append(out, chunk)
	}

	if len(q.DocumentIDs) > 0 {
		for _, docID := range q.DocumentIDs {
			for _, chunkID := range idx.byDocument[docID] {
				appendIfMatch(idx.chunks[chunkID])
			}
		}
		return out
	}
	for _, chunk := range idx.chunks {
		appendIfMatch(chunk)
	}
	return out
}

func matchFileType(chunk document.Chunk, types []document.FileType) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if chunk.Source.FileType == t {
			return true
		}
	}
	return false
}

func matchMetadata(chunk document.Chunk, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	for k, want := range filter {
		got, ok := chunk.Metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// GetDocument returns a copy of the stored document.
func (idx *Index) GetDocument(id string) (document.Document, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	doc, ok := idx.documents[id]
	if !ok {
		return document.Document{}, false
	}
	return doc.Clone(), true
}

// GetAllDocuments returns copies of every stored document.
func (idx *Index) GetAllDocuments() []document.Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]document.Document, 0, len(idx.documents))
	for _, doc := range idx.documents {
		out = append(out, doc.Clone())
	}
	return out
}

// Clear empties the index.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.documents = make(map[string]document.Document)
	idx.chunks = make(map[string]document.Chunk)
	idx.byDocument = make(map[string][]string)
}

// Stats reports index contents.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Stats{
		DocumentCount: len(idx.documents),
		ChunkCount:    len(idx.chunks),
		Dimension:     idx.dimension,
		Metric:        idx.metric,
	}
}
