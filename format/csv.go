package format

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/formfold/formfold/document"
)

// CSVAdapter is the flat tabular notation. It is deliberately lossy: a
// document that is not already a list is wrapped in a single-element list
// before serialization, nested cells are stringified as compact JSON, and
// parsing re-infers cell types heuristically. The type inference (numeric
// strings become numbers, true/false become booleans, empty cells become
// null) is a fixed convenience, not configurable.
type CSVAdapter struct{}

// ID returns the representation id.
func (CSVAdapter) ID() ID { return CSV }

// Serialize emits the document as delimited records. Rows that are not
// objects cannot be tabulated and degrade the whole view to an empty
// string.
func (CSVAdapter) Serialize(doc *document.Value, opts Options) string {
	rows := tabularRows(doc)
	if len(rows) == 0 {
		return ""
	}

	// Column order: union of keys across rows, first seen first.
	var cols []string
	seen := make(map[string]bool)
	for _, row := range rows {
		fields, err := row.AsObject()
		if err != nil {
			return ""
		}
		for _, f := range fields {
			if !seen[f.Key] {
				seen[f.Key] = true
				cols = append(cols, f.Key)
			}
		}
	}
	if len(cols) == 0 {
		return ""
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	w.Comma = rune(opts.Normalize().Delimiter)
	if err := w.Write(cols); err != nil {
		return ""
	}
	record := make([]string, len(cols))
	for _, row := range rows {
		for i, col := range cols {
			record[i] = cellText(row.Get(col))
		}
		if err := w.Write(record); err != nil {
			return ""
		}
	}
	w.Flush()
	if w.Error() != nil {
		return ""
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Parse decodes delimited records into a list of objects. The delimiter is
// detected from the header line, so edited text keeps parsing after a
// delimiter option change.
func (CSVAdapter) Parse(text string) (*document.Value, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Format: CSV, Message: "empty document"}
	}
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = detectDelimiter(text)
	records, err := r.ReadAll()
	if err != nil {
		return nil, &ParseError{Format: CSV, Message: err.Error()}
	}
	if len(records) < 1 {
		return nil, &ParseError{Format: CSV, Message: "missing header row"}
	}

	header := records[0]
	list := document.List()
	for _, record := range records[1:] {
		row := document.Object()
		for i, col := range header {
			row.Set(col, inferCell(record[i]))
		}
		list.Append(row)
	}
	return list, nil
}

// tabularRows returns the records to serialize: the list's elements, or
// the document itself wrapped as a single record.
func tabularRows(doc *document.Value) []*document.Value {
	if items, err := doc.AsList(); err == nil {
		return items
	}
	if doc.Kind() == document.KindObject {
		return []*document.Value{doc}
	}
	return nil
}

// cellText renders one cell. Nested lists and objects are stringified as
// compact JSON; csv.Writer adds quoting as needed.
func cellText(v *document.Value) string {
	switch v.Kind() {
	case document.KindNull:
		return ""
	case document.KindBool:
		b, _ := v.AsBool()
		if b {
			return "true"
		}
		return "false"
	case document.KindNumber:
		n, _ := v.AsNumber()
		return document.FormatNumber(n)
	case document.KindString:
		s, _ := v.AsString()
		return s
	default:
		var b strings.Builder
		appendJSON(&b, v)
		return b.String()
	}
}

// inferCell applies the fixed typing heuristic to a parsed cell.
func inferCell(s string) *document.Value {
	switch s {
	case "":
		return document.Null()
	case "true":
		return document.Bool(true)
	case "false":
		return document.Bool(false)
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return document.Number(n)
	}
	return document.Str(s)
}

// detectDelimiter picks the separator that appears most often in the
// header line. Characters inside quoted cells do not count; a header like
// "a,b,c"|x is pipe-delimited.
func detectDelimiter(text string) rune {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	var commas, tabs, pipes int
	inQuote := false
	for _, r := range line {
		if r == '"' {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		switch r {
		case ',':
			commas++
		case '\t':
			tabs++
		case '|':
			pipes++
		}
	}
	best, bestCount := ',', commas
	if tabs > bestCount {
		best, bestCount = '\t', tabs
	}
	if pipes > bestCount {
		best = '|'
	}
	return best
}
