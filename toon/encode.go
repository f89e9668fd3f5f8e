package toon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/formfold/formfold/document"
)

// Options configures the encoder.
type Options struct {
	// Indent is the number of spaces per nesting level. Values below 1
	// are clamped to 1 so the output stays decodable.
	Indent int

	// Delimiter separates inline array cells and tabular columns.
	// One of ',', '\t', '|'. Zero means comma.
	Delimiter byte
}

// DefaultOptions returns the standard encoding options.
func DefaultOptions() Options {
	return Options{Indent: 2, Delimiter: ','}
}

func (o Options) normalize() (Options, error) {
	if o.Indent < 1 {
		o.Indent = 1
	}
	switch o.Delimiter {
	case 0:
		o.Delimiter = ','
	case ',', '\t', '|':
	default:
		return o, fmt.Errorf("toon: unsupported delimiter %q", o.Delimiter)
	}
	return o, nil
}

// Encode converts a document value to TOON text.
func Encode(v *document.Value) (string, error) {
	return EncodeWithOptions(v, DefaultOptions())
}

// EncodeWithOptions converts a document value to TOON text with custom
// options. It accepts every JSON-model value; only malformed options fail.
func EncodeWithOptions(v *document.Value, opts Options) (string, error) {
	opts, err := opts.normalize()
	if err != nil {
		return "", err
	}
	e := &encoder{opts: opts}
	e.encodeRoot(v)
	return strings.TrimSuffix(e.sb.String(), "\n"), nil
}

type encoder struct {
	sb   strings.Builder
	opts Options
}

func (e *encoder) encodeRoot(v *document.Value) {
	switch v.Kind() {
	case document.KindObject:
		fields, _ := v.AsObject()
		for _, f := range fields {
			e.encodeField(f.Key, f.Value, 0)
		}
	case document.KindList:
		e.encodeArray("", v, 0)
	default:
		e.writeLine(0, scalarText(v, e.opts.Delimiter))
	}
}

// encodeField writes one object field at the given depth.
func (e *encoder) encodeField(key string, v *document.Value, depth int) {
	switch v.Kind() {
	case document.KindObject:
		fields, _ := v.AsObject()
		e.writeLine(depth, keyText(key)+":")
		for _, f := range fields {
			e.encodeField(f.Key, f.Value, depth+1)
		}
	case document.KindList:
		e.encodeArray(key, v, depth)
	default:
		e.writeLine(depth, keyText(key)+": "+scalarText(v, e.opts.Delimiter))
	}
}

// encodeArray writes an array field. key is empty for a root-level array
// and for arrays nested directly inside list items.
func (e *encoder) encodeArray(key string, v *document.Value, depth int) {
	items, _ := v.AsList()

	if cols, ok := tabularColumns(items); ok {
		e.writeLine(depth, e.header(key, len(items), cols))
		for _, item := range items {
			e.writeLine(depth+1, e.row(item, cols))
		}
		return
	}

	if allScalar(items) {
		line := e.header(key, len(items), nil)
		if len(items) > 0 {
			cells := make([]string, len(items))
			for i, item := range items {
				cells[i] = scalarText(item, e.opts.Delimiter)
			}
			line += " " + strings.Join(cells, string(e.opts.Delimiter))
		}
		e.writeLine(depth, line)
		return
	}

	// Mixed or nested: one list item per line.
	e.writeLine(depth, e.header(key, len(items), nil))
	for _, item := range items {
		e.encodeItem(item, depth+1)
	}
}

// encodeItem writes one element of a mixed array.
func (e *encoder) encodeItem(v *document.Value, depth int) {
	switch v.Kind() {
	case document.KindObject:
		fields, _ := v.AsObject()
		e.writeLine(depth, "-")
		for _, f := range fields {
			e.encodeField(f.Key, f.Value, depth+1)
		}
	case document.KindList:
		items, _ := v.AsList()
		if cols, ok := tabularColumns(items); ok {
			e.writeLine(depth, "- "+e.header("", len(items), cols))
			for _, item := range items {
				e.writeLine(depth+1, e.row(item, cols))
			}
			return
		}
		if allScalar(items) {
			line := "- " + e.header("", len(items), nil)
			if len(items) > 0 {
				cells := make([]string, len(items))
				for i, item := range items {
					cells[i] = scalarText(item, e.opts.Delimiter)
				}
				line += " " + strings.Join(cells, string(e.opts.Delimiter))
			}
			e.writeLine(depth, line)
			return
		}
		e.writeLine(depth, "- "+e.header("", len(items), nil))
		for _, item := range items {
			e.encodeItem(item, depth+1)
		}
	default:
		e.writeLine(depth, "- "+scalarText(v, e.opts.Delimiter))
	}
}

// header builds an array header: key[N]:, key[N|]{a|b}:, [N]: ...
// Non-comma delimiters are declared after the length.
func (e *encoder) header(key string, n int, cols []string) string {
	var b strings.Builder
	if key != "" {
		b.WriteString(keyText(key))
	}
	b.WriteByte('[')
	b.WriteString(strconv.Itoa(n))
	if e.opts.Delimiter != ',' {
		b.WriteByte(e.opts.Delimiter)
	}
	b.WriteByte(']')
	if cols != nil {
		b.WriteByte('{')
		for i, c := range cols {
			if i > 0 {
				b.WriteByte(e.opts.Delimiter)
			}
			b.WriteString(keyText(c))
		}
		b.WriteByte('}')
	}
	b.WriteByte(':')
	return b.String()
}

// row builds one tabular data row.
func (e *encoder) row(item *document.Value, cols []string) string {
	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = scalarText(item.Get(c), e.opts.Delimiter)
	}
	return strings.Join(cells, string(e.opts.Delimiter))
}

func (e *encoder) writeLine(depth int, text string) {
	for i := 0; i < depth*e.opts.Indent; i++ {
		e.sb.WriteByte(' ')
	}
	e.sb.WriteString(text)
	e.sb.WriteByte('\n')
}

// ============================================================
// Shape Analysis
// ============================================================

// tabularColumns reports whether a list qualifies for tabular encoding:
// at least one element, every element an object with the same keys in the
// same order, every field scalar. Returns the column list.
func tabularColumns(items []*document.Value) ([]string, bool) {
	if len(items) == 0 {
		return nil, false
	}
	first, err := items[0].AsObject()
	if err != nil || len(first) == 0 {
		return nil, false
	}
	cols := make([]string, len(first))
	for i, f := range first {
		if !isScalar(f.Value) {
			return nil, false
		}
		cols[i] = f.Key
	}
	for _, item := range items[1:] {
		fields, err := item.AsObject()
		if err != nil || len(fields) != len(cols) {
			return nil, false
		}
		for i, f := range fields {
			if f.Key != cols[i] || !isScalar(f.Value) {
				return nil, false
			}
		}
	}
	return cols, true
}

func allScalar(items []*document.Value) bool {
	for _, item := range items {
		if !isScalar(item) {
			return false
		}
	}
	return true
}
