package parser

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/sweetpotato0/raggate/document"
)

// Detection is the outcome of format detection. Confidence is reported for
// metadata only and never gates parsing.
type Detection struct {
	Type       document.FileType
	MimeType   string
	Confidence float64
}

var extensionTypes = map[string]document.FileType{
	".pdf":      document.FileTypePDF,
	".docx":     document.FileTypeDOCX,
	".txt":      document.FileTypeTXT,
	".text":     document.FileTypeTXT,
	".md":       document.FileTypeMD,
	".markdown": document.FileTypeMD,
	".csv":      document.FileTypeCSV,
	".html":     document.FileTypeHTML,
	".htm":      document.FileTypeHTML,
}

var mimeTypes = map[string]document.FileType{
	"application/pdf": document.FileTypePDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": document.FileTypeDOCX,
	"text/plain":    document.FileTypeTXT,
	"text/markdown": document.FileTypeMD,
	"text/csv":      document.FileTypeCSV,
	"text/html":     document.FileTypeHTML,
}

var canonicalMime = map[document.FileType]string{
	document.FileTypePDF:  "application/pdf",
	document.FileTypeDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	document.FileTypeTXT:  "text/plain",
	document.FileTypeMD:   "text/markdown",
	document.FileTypeCSV:  "text/csv",
	document.FileTypeHTML: "text/html",
}

var (
	magicPDF = []byte("%PDF")
	magicZIP = []byte("PK\x03\x04")
)

// Detect resolves the file type by extension first and MIME type second, then
// verifies magic bytes to compute a confidence score.
func Detect(data []byte, fileName, mimeType string) Detection {
	ext := strings.ToLower(filepath.Ext(fileName))
	ft, byExt := extensionTypes[ext]
	if !byExt {
		base := mimeType
		if i := strings.Index(base, ";"); i >= 0 {
			base = base[:i]
		}
		ft = mimeTypes[strings.TrimSpace(strings.ToLower(base))]
	}
	if ft == "" {
		return Detection{}
	}

	det := Detection{Type: ft, MimeType: canonicalMime[ft], Confidence: 0.8}
	if byExt {
		det.Confidence = 0.9
	}
	switch ft {
	case document.FileTypePDF:
		if bytes.HasPrefix(data, magicPDF) {
			det.Confidence = 1.0
		} else {
			det.Confidence = 0.5
		}
	case document.FileTypeDOCX:
		if bytes.HasPrefix(data, magicZIP) && ext == ".docx" {
			det.Confidence = 1.0
		} else {
			det.Confidence = 0.5
		}
	}
	return det
}
