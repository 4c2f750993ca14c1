// Package document defines the data model shared by the parser, chunker,
// index, and pipeline: an ingested Document and the Chunks it is split into.
package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileType enumerates the formats the parser registry understands.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypeTXT  FileType = "txt"
	FileTypeMD   FileType = "md"
	FileTypeCSV  FileType = "csv"
	FileTypeHTML FileType = "html"
)

// Document represents an ingested file with its extracted text and chunks.
type Document struct {
	ID       string   `json:"id"`
	FileName string   `json:"file_name"`
	FileType FileType `json:"file_type"`
	MimeType string   `json:"mime_type"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
	Chunks   []Chunk  `json:"chunks,omitempty"`
}

// Metadata carries ingest bookkeeping plus parser-specific fields.
type Metadata struct {
	UploadedAt     time.Time      `json:"uploaded_at"`
	FileSize       int            `json:"file_size"`
	CharacterCount int            `json:"character_count"`
	Title          string         `json:"title,omitempty"`
	Author         string         `json:"author,omitempty"`
	PageCount      int            `json:"page_count,omitempty"`
	Encoding       string         `json:"encoding,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
	Custom         map[string]any `json:"custom,omitempty"`
}

// ChunkSource locates a chunk inside its parent document.
type ChunkSource struct {
	FileName    string   `json:"file_name"`
	FileType    FileType `json:"file_type"`
	ChunkIndex  int      `json:"chunk_index"`
	TotalChunks int      `json:"total_chunks"`
	StartOffset int      `json:"start_offset"`
	EndOffset   int      `json:"end_offset"`
}

// Chunk is the retrieval atom: a bounded substring of a document carrying its
// embedding vector.
type Chunk struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding,omitempty"`
	Source    ChunkSource    `json:"source"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewDocumentID mints a fresh unique document identifier.
func NewDocumentID() string {
	return "doc_" + uuid.NewString()
}

// ChunkID derives the stable chunk identifier from (document id, index).
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// DocumentID recovers the parent document id encoded in the chunk id; chunks
// never carry lifetime-binding pointers back to their document.
func (c Chunk) DocumentID() string {
	if i := strings.LastIndex(c.ID, "_chunk_"); i > 0 {
		return c.ID[:i]
	}
	return ""
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := d
	if d.Metadata.Custom != nil {
		out.Metadata.Custom = make(map[string]any, len(d.Metadata.Custom))
		for k, v := range d.Metadata.Custom {
			out.Metadata.Custom[k] = v
		}
	}
	if d.Chunks != nil {
		out.Chunks = make([]Chunk, len(d.Chunks))
		for i, c := range d.Chunks {
			out.Chunks[i] = c.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the chunk.
func (c Chunk) Clone() Chunk {
	out := c
	if c.Embedding != nil {
		out.Embedding = make([]float32, len(c.Embedding))
		copy(out.Embedding, c.Embedding)
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
