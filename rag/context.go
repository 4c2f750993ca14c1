package rag

import (
	"fmt"
	"strings"

	"github.com/sweetpotato0/raggate/vector"
)

const (
	retrievedHeader  = "=== RETRIEVED CONTEXT FROM DOCUMENTS ==="
	additionalHeader = "=== ADDITIONAL CONTEXT ==="
)

// BuildContext renders retrieved chunks into the prompt context block. Chunks
// appear in rank order, each under a source header carrying its position and
// relevance. Inline context, when present, follows under its own header. The
// function is pure.
func BuildContext(retrieved []vector.RetrievedChunk, inlineContext string) string {
	var sb strings.Builder
	if len(retrieved) > 0 {
		sb.WriteString(retrievedHeader)
		sb.WriteString("\n\n")
		for i, rc := range retrieved {
			src := rc.Chunk.Source
			fmt.Fprintf(&sb, "--- Source %d: %s (Chunk %d/%d, Relevance: %.1f%%) ---\n",
				i+1, src.FileName, src.ChunkIndex+1, src.TotalChunks, rc.Score*100)
			sb.WriteString(rc.Chunk.Text)
			sb.WriteString("\n\n")
		}
	}
	if inline := strings.TrimSpace(inlineContext); inline != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(additionalHeader)
		sb.WriteString("\n\n")
		sb.WriteString(inline)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// SystemPrompt is the default instruction used when the caller generates an
// answer over the built context.
const SystemPrompt = "You are a helpful assistant. Answer the question using the provided document context. " +
	"If the context does not contain the answer, say so instead of guessing. " +
	"Cite the source file names you used."

// BuildPrompt combines the context block and the question into the user
// prompt handed to the completion client.
func BuildPrompt(contextBlock, question string) string {
	if strings.TrimSpace(contextBlock) == "" {
		return question
	}
	return contextBlock + "\n\nQuestion: " + question
}
