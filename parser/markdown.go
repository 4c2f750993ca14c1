package parser

import (
	"context"
	"strings"

	"github.com/sweetpotato0/raggate/document"
	"github.com/sweetpotato0/raggate/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
)

// Heading is one entry of the markdown structure outline.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	Line  int    `json:"line"`
}

// CodeBlock records a fenced code block and its language, when declared.
type CodeBlock struct {
	Language string `json:"language,omitempty"`
	Line     int    `json:"line"`
}

// Link records an inline link.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Image records an inline image.
type Image struct {
	Alt string `json:"alt"`
	URL string `json:"url"`
}

// ListInfo records a list and whether it is ordered.
type ListInfo struct {
	Type string `json:"type"` // ordered | unordered
	Line int    `json:"line"`
}

// MarkdownParser extracts text and a structural outline from markdown files
// using a goldmark AST.
type MarkdownParser struct {
	md goldmark.Markdown
}

// NewMarkdownParser creates the markdown parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{md: goldmark.New()}
}

func (p *MarkdownParser) Type() document.FileType {
	return document.FileTypeMD
}

func (p *MarkdownParser) Info() Info {
	return Info{
		Extensions:  []string{".md", ".markdown"},
		MimeTypes:   []string{"text/markdown"},
		Description: "Markdown with structural outline extraction",
		Features:    []string{"headings", "code-blocks", "links", "images", "lists"},
	}
}

func (p *MarkdownParser) Parse(ctx context.Context, data []byte, fileName string, opts Options) (*document.Document, error) {
	text, _, err := DecodeText(data, opts.Encoding)
	if err != nil {
		return nil, errors.Wrap(errors.CodeExtractionError, "decode markdown", err)
	}

	content := CleanText(text)
	if opts.PreserveFormatting {
		content = NormalizeLineEndings(text)
	}
	doc := &document.Document{Content: content}
	if !opts.ExtractMetadata {
		return doc, nil
	}

	outline, err := p.extractOutline([]byte(NormalizeLineEndings(text)))
	if err != nil {
		// Outline extraction is best-effort; text still stands on its own.
		doc.Metadata.Warnings = append(doc.Metadata.Warnings, "markdown outline extraction failed")
		return doc, nil
	}

	doc.Metadata.Title = outline.title
	doc.Metadata.Custom = map[string]any{
		"headings":     outline.headings,
		"codeBlocks":   outline.codeBlocks,
		"links":        outline.links,
		"images":       outline.images,
		"lists":        outline.lists,
		"headingCount": len(outline.headings),
	}
	return doc, nil
}

type mdOutline struct {
	title      string
	headings   []Heading
	codeBlocks []CodeBlock
	links      []Link
	images     []Image
	lists      []ListInfo
}

func (p *MarkdownParser) extractOutline(src []byte) (*mdOutline, error) {
	root := p.md.Parser().Parse(gtext.NewReader(src))
	out := &mdOutline{}

	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			h := Heading{
				Level: node.Level,
				Text:  nodeText(node, src),
				Line:  nodeLine(node, src),
			}
			out.headings = append(out.headings, h)
			if out.title == "" && node.Level == 1 {
				out.title = h.Text
			}
		case *ast.FencedCodeBlock:
			cb := CodeBlock{Line: nodeLine(node, src)}
			if lang := node.Language(src); len(lang) > 0 {
				cb.Language = string(lang)
			}
			out.codeBlocks = append(out.codeBlocks, cb)
		case *ast.CodeBlock:
			out.codeBlocks = append(out.codeBlocks, CodeBlock{Line: nodeLine(node, src)})
		case *ast.Link:
			out.links = append(out.links, Link{
				Text: nodeText(node, src),
				URL:  string(node.Destination),
			})
		case *ast.Image:
			out.images = append(out.images, Image{
				Alt: nodeText(node, src),
				URL: string(node.Destination),
			})
			return ast.WalkSkipChildren, nil
		case *ast.List:
			kind := "unordered"
			if node.IsOrdered() {
				kind = "ordered"
			}
			out.lists = append(out.lists, ListInfo{Type: kind, Line: nodeLine(node, src)})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// nodeText concatenates the raw text segments beneath a node.
func nodeText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			sb.Write(t.Segment.Value(src))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

// nodeLine resolves the 1-based source line of a block node's first segment.
// Container nodes without their own lines borrow the first descendant that
// has them.
func nodeLine(n ast.Node, src []byte) int {
	offset := -1
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || offset >= 0 {
			return ast.WalkContinue, nil
		}
		if child.Type() == ast.TypeBlock && child.Lines().Len() > 0 {
			offset = child.Lines().At(0).Start
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if offset < 0 {
		return 0
	}
	line := 1
	for _, b := range src[:offset] {
		if b == '\n' {
			line++
		}
	}
	return line
}
