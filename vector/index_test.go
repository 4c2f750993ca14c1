package vector

import (
	"errors"
	"testing"

	"github.com/sweetpotato0/raggate/document"
	apperrors "github.com/sweetpotato0/raggate/errors"
)

func basisDocument(id string, dim, chunks int) document.Document {
	doc := document.Document{ID: id, FileName: id + ".txt", FileType: document.FileTypeTXT}
	for i := 0; i < chunks; i++ {
		emb := make([]float32, dim)
		emb[i%dim] = 1
		doc.Chunks = append(doc.Chunks, document.Chunk{
			ID:        document.ChunkID(id, i),
			Text:      "chunk",
			Embedding: emb,
			Source: document.ChunkSource{
				FileName: doc.FileName, FileType: doc.FileType,
				ChunkIndex: i, TotalChunks: chunks,
			},
		})
	}
	return doc
}

func TestSearchTopKBasisVectors(t *testing.T) {
	idx := NewIndex(10, MetricCosine)
	if err := idx.AddDocuments([]document.Document{basisDocument("doc_b", 10, 10)}); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}

	// Query leaning on e3 with a small e1 component.
	q := make([]float32, 10)
	q[3] = 1
	q[1] = 0.1

	res, err := idx.Search(Query{Embedding: q, TopK: 2, MinSimilarity: 0})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(res.Results))
	}
	if res.Results[0].Chunk.ID != document.ChunkID("doc_b", 3) {
		t.Errorf("Expected e3 chunk first, got %s", res.Results[0].Chunk.ID)
	}
	if res.Results[1].Chunk.ID != document.ChunkID("doc_b", 1) {
		t.Errorf("Expected e1 chunk second, got %s", res.Results[1].Chunk.ID)
	}
	if res.Results[0].Score <= res.Results[1].Score {
		t.Errorf("Expected strictly decreasing scores, got %v then %v",
			res.Results[0].Score, res.Results[1].Score)
	}
	for i, r := range res.Results {
		if r.Rank != i {
			t.Errorf("Expected rank %d, got %d", i, r.Rank)
		}
	}
	if res.TotalChunks != 10 {
		t.Errorf("Expected total_chunks 10, got %d", res.TotalChunks)
	}
}

func TestSearchTieBreakByChunkID(t *testing.T) {
	idx := NewIndex(2, MetricCosine)
	doc := document.Document{ID: "doc_t", Chunks: []document.Chunk{
		{ID: "doc_t_chunk_1", Embedding: []float32{1, 0}},
		{ID: "doc_t_chunk_0", Embedding: []float32{1, 0}},
	}}
	if err := idx.AddDocuments([]document.Document{doc}); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	res, err := idx.Search(Query{Embedding: []float32{1, 0}, TopK: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Results[0].Chunk.ID != "doc_t_chunk_0" {
		t.Errorf("Expected lexicographically smaller id first, got %s", res.Results[0].Chunk.ID)
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	idx := NewIndex(4, MetricCosine)
	_, err := idx.Search(Query{Embedding: []float32{1, 0}})
	if err == nil {
		t.Fatal("Expected error for dimension mismatch")
	}
	if !errors.Is(err, apperrors.New(apperrors.CodeRetrieval, "")) {
		t.Errorf("Expected RETRIEVAL_ERROR, got %v", err)
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := NewIndex(3, MetricCosine)
	res, err := idx.Search(Query{Embedding: []float32{1, 0, 0}, TopK: 5})
	if err != nil {
		t.Fatalf("Expected empty result, not error: %v", err)
	}
	if len(res.Results) != 0 || res.TotalChunks != 0 {
		t.Errorf("Expected empty result set, got %d results, %d total", len(res.Results), res.TotalChunks)
	}
}

func TestSearchMinSimilarityFilter(t *testing.T) {
	idx := NewIndex(2, MetricCosine)
	doc := document.Document{ID: "doc_m", Chunks: []document.Chunk{
		{ID: "doc_m_chunk_0", Embedding: []float32{1, 0}},
		{ID: "doc_m_chunk_1", Embedding: []float32{-1, 0}},
	}}
	if err := idx.AddDocuments([]document.Document{doc}); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	res, err := idx.Search(Query{Embedding: []float32{1, 0}, TopK: 5, MinSimilarity: 0.5})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Results) != 1 {
		t.Fatalf("Expected 1 result above threshold, got %d", len(res.Results))
	}
	if res.Results[0].Score < 0.5 {
		t.Errorf("Expected score >= 0.5, got %v", res.Results[0].Score)
	}
}

func TestSearchDocumentFilter(t *testing.T) {
	idx := NewIndex(2, MetricCosine)
	a := document.Document{ID: "doc_a", Chunks: []document.Chunk{{ID: "doc_a_chunk_0", Embedding: []float32{1, 0}}}}
	b := document.Document{ID: "doc_b", Chunks: []document.Chunk{{ID: "doc_b_chunk_0", Embedding: []float32{1, 0}}}}
	if err := idx.AddDocuments([]document.Document{a, b}); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	res, err := idx.Search(Query{Embedding: []float32{1, 0}, TopK: 5, DocumentIDs: []string{"doc_b"}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Chunk.ID != "doc_b_chunk_0" {
		t.Errorf("Expected only doc_b chunk, got %#v", res.Results)
	}
}

func TestSearchMetadataFilter(t *testing.T) {
	idx := NewIndex(2, MetricCosine)
	doc := document.Document{ID: "doc_f", Chunks: []document.Chunk{
		{ID: "doc_f_chunk_0", Embedding: []float32{1, 0}, Metadata: map[string]any{"page": 1}},
		{ID: "doc_f_chunk_1", Embedding: []float32{1, 0}, Metadata: map[string]any{"page": 2}},
	}}
	if err := idx.AddDocuments([]document.Document{doc}); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	res, err := idx.Search(Query{Embedding: []float32{1, 0}, TopK: 5, MetadataFilter: map[string]any{"page": 2}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Chunk.ID != "doc_f_chunk_1" {
		t.Errorf("Expected only page-2 chunk, got %#v", res.Results)
	}
}

func TestAddDocumentsAllOrNothingPerDocument(t *testing.T) {
	idx := NewIndex(2, MetricCosine)
	good := document.Document{ID: "doc_ok", Chunks: []document.Chunk{{ID: "doc_ok_chunk_0", Embedding: []float32{1, 0}}}}
	bad := document.Document{ID: "doc_bad", Chunks: []document.Chunk{
		{ID: "doc_bad_chunk_0", Embedding: []float32{1, 0}},
		{ID: "doc_bad_chunk_1", Embedding: []float32{1, 0, 0}}, // wrong dimension
	}}

	err := idx.AddDocuments([]document.Document{bad, good})
	if err == nil {
		t.Fatal("Expected validation error for bad document")
	}
	if apperrors.CodeOf(err) != apperrors.CodeVectorStore {
		t.Errorf("Expected VECTOR_STORE_ERROR, got %v", err)
	}

	stats := idx.Stats()
	if stats.DocumentCount != 1 || stats.ChunkCount != 1 {
		t.Errorf("Expected only the good document stored, got %+v", stats)
	}
	if _, ok := idx.GetDocument("doc_bad"); ok {
		t.Error("Expected bad document to be absent")
	}
}

func TestRemoveDocumentsIdempotent(t *testing.T) {
	idx := NewIndex(2, MetricCosine)
	doc := document.Document{ID: "doc_r", Chunks: []document.Chunk{{ID: "doc_r_chunk_0", Embedding: []float32{1, 0}}}}
	if err := idx.AddDocuments([]document.Document{doc}); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	idx.RemoveDocuments("doc_r")
	idx.RemoveDocuments("doc_r", "never_existed")
	stats := idx.Stats()
	if stats.DocumentCount != 0 || stats.ChunkCount != 0 {
		t.Errorf("Expected empty index after removal, got %+v", stats)
	}
}

func TestClear(t *testing.T) {
	idx := NewIndex(2, MetricDot)
	doc := document.Document{ID: "doc_c", Chunks: []document.Chunk{{ID: "doc_c_chunk_0", Embedding: []float32{1, 0}}}}
	if err := idx.AddDocuments([]document.Document{doc}); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	idx.Clear()
	if stats := idx.Stats(); stats.ChunkCount != 0 {
		t.Errorf("Expected cleared index, got %+v", stats)
	}
}
