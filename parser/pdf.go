package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/sweetpotato0/raggate/document"
	"github.com/sweetpotato0/raggate/errors"
)

// PDFParser extracts text, the info dictionary, and the page count from PDF
// files.
type PDFParser struct{}

// NewPDFParser creates the PDF parser.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

func (p *PDFParser) Type() document.FileType {
	return document.FileTypePDF
}

func (p *PDFParser) Info() Info {
	return Info{
		Extensions:  []string{".pdf"},
		MimeTypes:   []string{"application/pdf"},
		Description: "PDF text extraction with document info metadata",
		Features:    []string{"page-count", "info-dictionary"},
	}
}

func (p *PDFParser) Parse(ctx context.Context, data []byte, fileName string, opts Options) (doc *document.Document, err error) {
	// The extractor panics on some malformed inputs; fold those into the
	// corruption triage below.
	defer func() {
		if r := recover(); r != nil {
			err = triagePDFError(fmt.Errorf("pdf extraction panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, triagePDFError(err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return nil, triagePDFError(err)
	}
	raw, err := io.ReadAll(textReader)
	if err != nil {
		return nil, triagePDFError(err)
	}

	doc = &document.Document{Content: CleanText(string(raw))}
	if opts.ExtractMetadata {
		doc.Metadata.PageCount = reader.NumPage()
		custom := map[string]any{"pageCount": reader.NumPage()}
		applyPDFInfo(reader, &doc.Metadata, custom)
		doc.Metadata.Custom = custom
	}
	return doc, nil
}

// applyPDFInfo copies the info dictionary into metadata. Malformed entries,
// including unparseable dates, are silently omitted.
func applyPDFInfo(reader *pdf.Reader, meta *document.Metadata, custom map[string]any) {
	defer func() {
		_ = recover() // a broken info dictionary is never fatal
	}()

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return
	}
	if title := infoString(info, "Title"); title != "" {
		meta.Title = title
	}
	if author := infoString(info, "Author"); author != "" {
		meta.Author = author
	}
	for _, key := range []string{"Subject", "Creator", "Producer", "Keywords"} {
		if v := infoString(info, key); v != "" {
			custom[strings.ToLower(key)] = v
		}
	}
	if created, ok := parsePDFDate(infoString(info, "CreationDate")); ok {
		custom["creationDate"] = created
	}
	if modified, ok := parsePDFDate(infoString(info, "ModDate")); ok {
		custom["modificationDate"] = modified
	}
}

func infoString(info pdf.Value, key string) string {
	v := info.Key(key)
	if v.Kind() != pdf.String {
		return ""
	}
	return v.RawString()
}

// parsePDFDate parses "D:YYYYMMDDhhmmss..." timestamps, tolerating truncated
// forms down to a bare year.
func parsePDFDate(s string) (time.Time, bool) {
	s = strings.TrimPrefix(s, "D:")
	digits := s
	for i, r := range s {
		if r < '0' || r > '9' {
			digits = s[:i]
			break
		}
	}
	layouts := []string{"20060102150405", "200601021504", "2006010215", "20060102", "200601", "2006"}
	for _, layout := range layouts {
		if len(digits) == len(layout) {
			if t, err := time.Parse(layout, digits); err == nil {
				return t, true
			}
			break
		}
	}
	return time.Time{}, false
}

// triagePDFError classifies extractor failures by message, per the upstream
// library's untyped errors.
func triagePDFError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "password") || strings.Contains(msg, "encrypted"):
		return errors.Wrap(errors.CodePasswordProtected, "PDF is password protected", err)
	case strings.Contains(msg, "invalid pdf") || strings.Contains(msg, "corrupt") || strings.Contains(msg, "damaged"):
		return errors.Wrap(errors.CodeFileCorrupted, "PDF file is corrupted", err)
	default:
		return errors.Wrap(errors.CodeExtractionError, "PDF text extraction failed", err)
	}
}
