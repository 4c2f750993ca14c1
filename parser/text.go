package parser

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sweetpotato0/raggate/document"
	"github.com/sweetpotato0/raggate/errors"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}

	reSpaces   = regexp.MustCompile(`[ \t]+`)
	reNewlines = regexp.MustCompile(`\n{3,}`)
	reCRLF     = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// TextParser handles plain text files with BOM-aware encoding detection.
type TextParser struct{}

// NewTextParser creates the plain-text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Type() document.FileType {
	return document.FileTypeTXT
}

func (p *TextParser) Info() Info {
	return Info{
		Extensions:  []string{".txt", ".text"},
		MimeTypes:   []string{"text/plain"},
		Description: "Plain text with BOM-aware encoding detection",
		Features:    []string{"encoding-detection", "whitespace-normalization"},
	}
}

func (p *TextParser) Parse(ctx context.Context, data []byte, fileName string, opts Options) (*document.Document, error) {
	text, encoding, err := DecodeText(data, opts.Encoding)
	if err != nil {
		return nil, errors.Wrap(errors.CodeExtractionError, "decode text", err)
	}
	doc := &document.Document{Content: CleanText(text)}
	if opts.ExtractMetadata {
		doc.Metadata.Encoding = encoding
		doc.Metadata.Custom = map[string]any{
			"lineCount": strings.Count(doc.Content, "\n") + 1,
		}
	}
	return doc, nil
}

// DecodeText decodes raw bytes into a UTF-8 string. The encoding is taken
// from the hint when given, otherwise detected: BOMs win, then clean UTF-8,
// then pure 7-bit ASCII, then UTF-8 as the fallback. The detected encoding
// name is returned alongside the text.
func DecodeText(data []byte, hint string) (string, string, error) {
	switch strings.ToLower(hint) {
	case "", "auto":
	case "utf-8", "utf8":
		return string(stripUTF8BOM(data)), "utf-8", nil
	case "utf-16le":
		return decodeUTF16(data, unicode.LittleEndian)
	case "utf-16be":
		return decodeUTF16(data, unicode.BigEndian)
	case "ascii":
		return string(data), "ascii", nil
	default:
		return "", "", errors.Newf(errors.CodeValidation, "unsupported encoding %q", hint)
	}

	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):]), "utf-8", nil
	case bytes.HasPrefix(data, bomUTF16BE):
		return decodeUTF16(data, unicode.BigEndian)
	case bytes.HasPrefix(data, bomUTF16LE):
		return decodeUTF16(data, unicode.LittleEndian)
	}

	hasHighBytes := false
	for _, b := range data {
		if b >= 0x80 {
			hasHighBytes = true
			break
		}
	}
	if !hasHighBytes {
		return string(data), "ascii", nil
	}
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}
	// Invalid sequences decode to replacement runes.
	return string(data), "utf-8", nil
}

func decodeUTF16(data []byte, endian unicode.Endianness) (string, string, error) {
	dec := unicode.UTF16(endian, unicode.ExpectBOM).NewDecoder()
	out, err := dec.Bytes(data)
	if err != nil {
		// No BOM present; decode as-is.
		out, err = unicode.UTF16(endian, unicode.IgnoreBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", "", err
		}
	}
	name := "utf-16le"
	if endian == unicode.BigEndian {
		name = "utf-16be"
	}
	return string(out), name, nil
}

func stripUTF8BOM(data []byte) []byte {
	return bytes.TrimPrefix(data, bomUTF8)
}

// CleanText normalizes extracted text: line endings become \n, runs of spaces
// and tabs collapse to one space, three or more newlines collapse to two, and
// the result is trimmed. The function is idempotent.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	out := reCRLF.Replace(text)
	out = reSpaces.ReplaceAllString(out, " ")
	out = reNewlines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// NormalizeLineEndings converts \r\n and \r to \n without touching any other
// whitespace; used when callers ask to preserve formatting.
func NormalizeLineEndings(text string) string {
	return reCRLF.Replace(text)
}
