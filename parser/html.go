package parser

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sweetpotato0/raggate/document"
	"github.com/sweetpotato0/raggate/errors"
)

// HTMLParser flattens HTML pages into retrieval-friendly text, keeping
// headings, lists, code blocks, and tables recognizable.
type HTMLParser struct{}

// NewHTMLParser creates the HTML parser.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

func (p *HTMLParser) Type() document.FileType {
	return document.FileTypeHTML
}

func (p *HTMLParser) Info() Info {
	return Info{
		Extensions:  []string{".html", ".htm"},
		MimeTypes:   []string{"text/html"},
		Description: "HTML content extraction preserving document structure",
		Features:    []string{"headings", "tables", "code-blocks"},
	}
}

func (p *HTMLParser) Parse(ctx context.Context, data []byte, fileName string, opts Options) (*document.Document, error) {
	raw, _, err := DecodeText(data, opts.Encoding)
	if err != nil {
		return nil, errors.Wrap(errors.CodeExtractionError, "decode html", err)
	}

	sel, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(errors.CodeExtractionError, "HTML parsing failed", err)
	}
	sel.Find("script,style,noscript").Remove()

	var out []string
	sel.Find("h1,h2,h3,h4,p,li,pre,table").Each(func(i int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "h1":
			out = append(out, "# "+strings.TrimSpace(s.Text()))
		case "h2":
			out = append(out, "## "+strings.TrimSpace(s.Text()))
		case "h3":
			out = append(out, "### "+strings.TrimSpace(s.Text()))
		case "h4":
			out = append(out, "#### "+strings.TrimSpace(s.Text()))
		case "p":
			if t := strings.TrimSpace(s.Text()); t != "" {
				out = append(out, t)
			}
		case "li":
			out = append(out, "- "+strings.TrimSpace(s.Text()))
		case "pre":
			out = append(out, "```\n"+strings.TrimSpace(s.Text())+"\n```")
		case "table":
			if t := renderHTMLTable(s); t != "" {
				out = append(out, t)
			}
		}
	})

	content := strings.Join(out, "\n\n")
	if content == "" {
		content = CleanText(sel.Text())
	}

	doc := &document.Document{Content: content}
	if opts.ExtractMetadata {
		if title := strings.TrimSpace(sel.Find("title").First().Text()); title != "" {
			doc.Metadata.Title = title
		}
		custom := map[string]any{}
		sel.Find("meta[name]").Each(func(i int, m *goquery.Selection) {
			name, _ := m.Attr("name")
			if content, ok := m.Attr("content"); ok && content != "" {
				switch strings.ToLower(name) {
				case "author":
					doc.Metadata.Author = content
				case "description", "keywords":
					custom[strings.ToLower(name)] = content
				}
			}
		})
		if len(custom) > 0 {
			doc.Metadata.Custom = custom
		}
	}
	return doc, nil
}

func renderHTMLTable(sel *goquery.Selection) string {
	var rows []string
	sel.Find("tr").Each(func(i int, tr *goquery.Selection) {
		var cols []string
		tr.Find("th,td").Each(func(j int, td *goquery.Selection) {
			cols = append(cols, strings.TrimSpace(td.Text()))
		})
		if len(cols) > 0 {
			rows = append(rows, "| "+strings.Join(cols, " | ")+" |")
		}
	})
	return strings.Join(rows, "\n")
}
