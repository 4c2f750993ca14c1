package parser

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/sweetpotato0/raggate/document"
	"github.com/sweetpotato0/raggate/errors"
)

// CellKind discriminates the dynamic CSV cell variant.
type CellKind int

const (
	CellNull CellKind = iota
	CellBool
	CellNumber
	CellString
)

// Cell is a dynamically typed CSV value. Empty fields become null, true/false
// become booleans, unquoted numeric tokens become numbers, and everything
// else stays a string; quoting preserves numeric-looking tokens like "00123".
type Cell struct {
	Kind   CellKind
	Bool   bool
	Number float64
	Str    string
}

// MarshalJSON renders the cell as its natural JSON value.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellNull:
		return []byte("null"), nil
	case CellBool:
		return json.Marshal(c.Bool)
	case CellNumber:
		return json.Marshal(c.Number)
	default:
		return json.Marshal(c.Str)
	}
}

// String renders the cell for the flattened text output.
func (c Cell) String() string {
	switch c.Kind {
	case CellNull:
		return ""
	case CellBool:
		return strconv.FormatBool(c.Bool)
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	default:
		return c.Str
	}
}

// CSVParser parses delimiter-separated files with a quote-tracking state
// machine, so quoted fields may contain delimiters and line breaks.
type CSVParser struct{}

// NewCSVParser creates the CSV parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Type() document.FileType {
	return document.FileTypeCSV
}

func (p *CSVParser) Info() Info {
	return Info{
		Extensions:  []string{".csv"},
		MimeTypes:   []string{"text/csv"},
		Description: "CSV with delimiter auto-detection and typed cells",
		Features:    []string{"delimiter-detection", "quoted-fields", "type-coercion"},
	}
}

func (p *CSVParser) Parse(ctx context.Context, data []byte, fileName string, opts Options) (*document.Document, error) {
	text, _, err := DecodeText(data, opts.Encoding)
	if err != nil {
		return nil, errors.Wrap(errors.CodeExtractionError, "decode csv", err)
	}
	text = NormalizeLineEndings(text)

	delimiter := opts.CSV.Delimiter
	if delimiter == "" {
		delimiter = detectDelimiter(text)
	}
	if len([]rune(delimiter)) != 1 {
		return nil, errors.Newf(errors.CodeValidation, "invalid csv delimiter %q", delimiter)
	}

	records := splitRecords(text, []rune(delimiter)[0], opts.CSV.SkipEmptyLines)
	if len(records) == 0 {
		return &document.Document{Content: ""}, nil
	}

	var headers []string
	dataRecords := records
	if opts.CSV.HasHeader {
		for _, f := range records[0] {
			headers = append(headers, f.value)
		}
		dataRecords = records[1:]
	}

	rows := make([][]Cell, len(dataRecords))
	for i, rec := range dataRecords {
		row := make([]Cell, len(rec))
		for j, f := range rec {
			row[j] = coerceCell(f)
		}
		rows[i] = row
	}

	doc := &document.Document{Content: renderCSVText(headers, rows)}
	if opts.ExtractMetadata {
		structured := structuredRows(headers, rows)
		doc.Metadata.Custom = map[string]any{
			"delimiter":      delimiter,
			"headers":        headers,
			"rowCount":       len(rows),
			"columnCount":    columnCount(headers, rows),
			"structuredData": structured,
		}
	}
	return doc, nil
}

// rawField is a parsed field before coercion.
type rawField struct {
	value  string
	quoted bool
}

// detectDelimiter picks the candidate with the highest occurrence count on
// the first line, defaulting to a comma.
func detectDelimiter(text string) string {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestCount := ",", 0
	for _, cand := range []string{",", ";", "\t", "|"} {
		if n := strings.Count(line, cand); n > bestCount {
			best, bestCount = cand, n
		}
	}
	return best
}

// splitRecords runs the quote-tracking state machine over the whole input,
// so newlines inside quoted fields stay part of the field.
func splitRecords(text string, delimiter rune, skipEmpty bool) [][]rawField {
	var (
		records  [][]rawField
		record   []rawField
		field    strings.Builder
		quoted   bool // field contained at least one quoted section
		inQuotes bool
	)

	finishField := func() {
		value := field.String()
		if !quoted {
			value = strings.TrimRight(value, " \t")
		}
		record = append(record, rawField{value: value, quoted: quoted})
		field.Reset()
		quoted = false
	}
	finishRecord := func() {
		finishField()
		empty := len(record) == 1 && record[0].value == "" && !record[0].quoted
		if !(skipEmpty && empty) {
			records = append(records, record)
		}
		record = nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				field.WriteRune('"') // escaped quote
				i++
				continue
			}
			inQuotes = !inQuotes
			quoted = true
		case r == delimiter && !inQuotes:
			finishField()
		case r == '\n' && !inQuotes:
			finishRecord()
		default:
			field.WriteRune(r)
		}
	}
	if field.Len() > 0 || quoted || len(record) > 0 {
		finishRecord()
	}
	return records
}

// coerceCell applies the dynamic typing rules to a parsed field.
func coerceCell(f rawField) Cell {
	if f.value == "" {
		return Cell{Kind: CellNull}
	}
	switch strings.ToLower(f.value) {
	case "true":
		return Cell{Kind: CellBool, Bool: true}
	case "false":
		return Cell{Kind: CellBool, Bool: false}
	}
	if !f.quoted {
		if n, err := strconv.ParseFloat(f.value, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
			return Cell{Kind: CellNumber, Number: n}
		}
	}
	return Cell{Kind: CellString, Str: f.value}
}

// structuredRows shapes rows as header-keyed maps when headers exist, or as
// plain slices otherwise.
func structuredRows(headers []string, rows [][]Cell) any {
	if len(headers) == 0 {
		return rows
	}
	out := make([]map[string]Cell, len(rows))
	for i, row := range rows {
		m := make(map[string]Cell, len(headers))
		for j, h := range headers {
			if j < len(row) {
				m[h] = row[j]
			} else {
				m[h] = Cell{Kind: CellNull}
			}
		}
		out[i] = m
	}
	return out
}

// renderCSVText flattens the table into a pipe-delimited rendering suitable
// for retrieval.
func renderCSVText(headers []string, rows [][]Cell) string {
	var sb strings.Builder
	if len(headers) > 0 {
		sb.WriteString(strings.Join(headers, " | "))
	}
	for _, row := range rows {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		parts := make([]string, len(row))
		for i, c := range row {
			parts[i] = c.String()
		}
		sb.WriteString(strings.Join(parts, " | "))
	}
	return sb.String()
}

func columnCount(headers []string, rows [][]Cell) int {
	if len(headers) > 0 {
		return len(headers)
	}
	max := 0
	for _, row := range rows {
		if len(row) > max {
			max = len(row)
		}
	}
	return max
}
