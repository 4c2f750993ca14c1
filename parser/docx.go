package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strings"
	"time"

	"github.com/sweetpotato0/raggate/document"
	"github.com/sweetpotato0/raggate/errors"
)

// DOCXParser reads Office Open XML word documents. Text comes from
// word/document.xml and properties from docProps/core.xml inside the zip
// container.
type DOCXParser struct{}

// NewDOCXParser creates the DOCX parser.
func NewDOCXParser() *DOCXParser {
	return &DOCXParser{}
}

func (p *DOCXParser) Type() document.FileType {
	return document.FileTypeDOCX
}

func (p *DOCXParser) Info() Info {
	return Info{
		Extensions:  []string{".docx"},
		MimeTypes:   []string{"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		Description: "Word document text extraction with core properties",
		Features:    []string{"core-properties", "paragraph-breaks"},
	}
}

func (p *DOCXParser) Parse(ctx context.Context, data []byte, fileName string, opts Options) (*document.Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, triageDOCXError(err)
	}

	body, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return nil, triageDOCXError(err)
	}
	text, err := extractDOCXText(body)
	if err != nil {
		return nil, triageDOCXError(err)
	}

	doc := &document.Document{Content: CleanText(text)}
	if opts.ExtractMetadata {
		// Missing or broken core properties never fail the parse.
		if props, err := readZipFile(zr, "docProps/core.xml"); err == nil {
			applyCoreProperties(props, &doc.Metadata)
		} else {
			doc.Metadata.Warnings = append(doc.Metadata.Warnings, "core properties unavailable")
		}
	}
	return doc, nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, errors.Newf(errors.CodeFileCorrupted, "docx archive is missing %s", name)
}

// extractDOCXText streams the document XML, collecting <w:t> runs. Paragraph
// ends (<w:p>) become newlines, tabs (<w:tab/>) and line breaks (<w:br/>) map
// to their plain-text equivalents.
func extractDOCXText(body []byte) (string, error) {
	var (
		sb     strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

type coreProperties struct {
	Title          string `xml:"title"`
	Subject        string `xml:"subject"`
	Creator        string `xml:"creator"`
	Keywords       string `xml:"keywords"`
	Category       string `xml:"category"`
	LastModifiedBy string `xml:"lastModifiedBy"`
	Revision       string `xml:"revision"`
	Created        string `xml:"created"`
	Modified       string `xml:"modified"`
}

func applyCoreProperties(data []byte, meta *document.Metadata) {
	var props coreProperties
	if err := xml.Unmarshal(data, &props); err != nil {
		meta.Warnings = append(meta.Warnings, "core properties unreadable")
		return
	}
	meta.Title = props.Title
	meta.Author = props.Creator

	custom := map[string]any{}
	for key, value := range map[string]string{
		"subject":        props.Subject,
		"keywords":       props.Keywords,
		"category":       props.Category,
		"lastModifiedBy": props.LastModifiedBy,
		"revision":       props.Revision,
	} {
		if value != "" {
			custom[key] = value
		}
	}
	if t, err := time.Parse(time.RFC3339, props.Created); err == nil {
		custom["created"] = t
	}
	if t, err := time.Parse(time.RFC3339, props.Modified); err == nil {
		custom["modified"] = t
	}
	if len(custom) > 0 {
		meta.Custom = custom
	}
}

func triageDOCXError(err error) error {
	if errors.CodeOf(err) == errors.CodeFileCorrupted {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"corrupt", "invalid", "damaged", "not a valid"} {
		if strings.Contains(msg, marker) {
			return errors.Wrap(errors.CodeFileCorrupted, "DOCX file is corrupted", err)
		}
	}
	return errors.Wrap(errors.CodeExtractionError, "DOCX text extraction failed", err)
}
