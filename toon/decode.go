package toon

import (
	"fmt"
	"strings"

	"github.com/formfold/formfold/document"
)

// ParseError represents a decoding error with source line.
type ParseError struct {
	Message string
	Line    int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("toon: line %d: %s", e.Line, e.Message)
	}
	return "toon: " + e.Message
}

// Decode parses TOON text into a document value. Indentation width is
// inferred from the input and array delimiters are read from their headers,
// so decoding needs no options. Length markers are checked strictly.
func Decode(text string) (*document.Value, error) {
	lines, err := splitLines(text)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return document.Object(), nil
	}

	d := &decoder{lines: lines}
	v, err := d.parseRoot()
	if err != nil {
		return nil, err
	}
	if d.pos < len(d.lines) {
		return nil, d.errorf(d.lines[d.pos], "unexpected trailing content")
	}
	return v, nil
}

type line struct {
	num    int
	indent int
	text   string
}

func splitLines(text string) ([]line, error) {
	var out []line
	for i, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimLeft(raw, " ")
		trimmed = strings.TrimRight(trimmed, " \r")
		if trimmed == "" {
			continue
		}
		indent := len(raw) - len(strings.TrimLeft(raw, " "))
		if strings.HasPrefix(raw[indent:], "\t") {
			return nil, &ParseError{Message: "tab indentation is not supported", Line: i + 1}
		}
		out = append(out, line{num: i + 1, indent: indent, text: trimmed})
	}
	return out, nil
}

type decoder struct {
	lines []line
	pos   int
	unit  int // inferred spaces per level, 0 until the first indented line
}

func (d *decoder) errorf(l line, format string, args ...interface{}) error {
	return &ParseError{Message: fmt.Sprintf(format, args...), Line: l.num}
}

// depth converts a line's indentation to a nesting level.
func (d *decoder) depth(l line) (int, error) {
	if l.indent == 0 {
		return 0, nil
	}
	if d.unit == 0 {
		d.unit = l.indent
	}
	if l.indent%d.unit != 0 {
		return 0, d.errorf(l, "indentation of %d is not a multiple of %d", l.indent, d.unit)
	}
	return l.indent / d.unit, nil
}

func (d *decoder) parseRoot() (*document.Value, error) {
	first := d.lines[0]
	if first.indent != 0 {
		return nil, d.errorf(first, "unexpected indentation at top level")
	}
	if first.text[0] == '[' {
		hdr, rest, err := parseHeader(first.text)
		if err != nil {
			return nil, d.errorf(first, "%s", errMessage(err))
		}
		d.pos++
		return d.parseArrayBody(hdr, rest, 0)
	}
	if _, _, _, ok := splitFieldLine(first.text); ok {
		return d.parseFields(0)
	}
	// Single scalar document.
	if len(d.lines) > 1 {
		return nil, d.errorf(d.lines[1], "unexpected content after scalar document")
	}
	d.pos++
	v, err := parseScalar(first.text)
	if err != nil {
		return nil, d.errorf(first, "%s", errMessage(err))
	}
	return v, nil
}

// parseFields reads consecutive object fields at the given depth.
func (d *decoder) parseFields(depth int) (*document.Value, error) {
	obj := document.Object()
	for d.pos < len(d.lines) {
		l := d.lines[d.pos]
		dep, err := d.depth(l)
		if err != nil {
			return nil, err
		}
		if dep < depth {
			break
		}
		if dep > depth {
			return nil, d.errorf(l, "unexpected indentation")
		}
		key, hdr, rest, ok := splitFieldLine(l.text)
		if !ok {
			return nil, d.errorf(l, "expected a key: value field")
		}
		d.pos++
		v, err := d.parseFieldValue(l, hdr, rest, depth)
		if err != nil {
			return nil, err
		}
		obj.Set(key, v)
	}
	return obj, nil
}

// parseFieldValue decodes what follows a field's colon: a scalar, a nested
// object block, or an array body described by the header.
func (d *decoder) parseFieldValue(l line, hdr *header, rest string, depth int) (*document.Value, error) {
	if hdr != nil {
		return d.parseArrayBody(hdr, rest, depth)
	}
	if rest != "" {
		v, err := parseScalar(rest)
		if err != nil {
			return nil, d.errorf(l, "%s", errMessage(err))
		}
		return v, nil
	}
	if d.pos < len(d.lines) {
		dep, err := d.depth(d.lines[d.pos])
		if err != nil {
			return nil, err
		}
		if dep > depth {
			return d.parseFields(depth + 1)
		}
	}
	return document.Object(), nil
}

// parseArrayBody decodes an array once its header has been read. depth is
// the level of the header line; rows and items live one level deeper.
func (d *decoder) parseArrayBody(hdr *header, rest string, depth int) (*document.Value, error) {
	switch {
	case hdr.cols != nil:
		return d.parseTable(hdr, depth)
	case rest != "":
		cells, err := splitCells(rest, hdr.delim)
		if err != nil {
			return nil, err
		}
		if len(cells) != hdr.count {
			return nil, &ParseError{Message: fmt.Sprintf("array declares %d elements but has %d", hdr.count, len(cells))}
		}
		list := document.List()
		for _, c := range cells {
			v, err := parseScalar(c)
			if err != nil {
				return nil, err
			}
			list.Append(v)
		}
		return list, nil
	case hdr.count == 0:
		return document.List(), nil
	default:
		return d.parseItems(hdr.count, depth)
	}
}

// parseTable reads exactly count rows of delimited cells.
func (d *decoder) parseTable(hdr *header, depth int) (*document.Value, error) {
	list := document.List()
	for i := 0; i < hdr.count; i++ {
		if d.pos >= len(d.lines) {
			return nil, &ParseError{Message: fmt.Sprintf("table declares %d rows but has %d", hdr.count, i)}
		}
		l := d.lines[d.pos]
		dep, err := d.depth(l)
		if err != nil {
			return nil, err
		}
		if dep != depth+1 {
			return nil, d.errorf(l, "table declares %d rows but has %d", hdr.count, i)
		}
		cells, err := splitCells(l.text, hdr.delim)
		if err != nil {
			return nil, d.errorf(l, "%s", errMessage(err))
		}
		if len(cells) != len(hdr.cols) {
			return nil, d.errorf(l, "row has %d cells, expected %d", len(cells), len(hdr.cols))
		}
		row := document.Object()
		for j, col := range hdr.cols {
			v, err := parseScalar(cells[j])
			if err != nil {
				return nil, d.errorf(l, "%s", errMessage(err))
			}
			row.Set(col, v)
		}
		list.Append(row)
		d.pos++
	}
	return list, nil
}

// parseItems reads exactly count "- " list items.
func (d *decoder) parseItems(count, depth int) (*document.Value, error) {
	list := document.List()
	for i := 0; i < count; i++ {
		if d.pos >= len(d.lines) {
			return nil, &ParseError{Message: fmt.Sprintf("array declares %d elements but has %d", count, i)}
		}
		l := d.lines[d.pos]
		dep, err := d.depth(l)
		if err != nil {
			return nil, err
		}
		if dep != depth+1 {
			return nil, d.errorf(l, "array declares %d elements but has %d", count, i)
		}
		if l.text != "-" && !strings.HasPrefix(l.text, "- ") {
			return nil, d.errorf(l, "expected a list item")
		}
		d.pos++
		item, err := d.parseItem(l, depth+1)
		if err != nil {
			return nil, err
		}
		list.Append(item)
	}
	return list, nil
}

// parseItem decodes a single list item line (already consumed).
func (d *decoder) parseItem(l line, depth int) (*document.Value, error) {
	if l.text == "-" {
		// Object item: fields one level deeper, or an empty object.
		if d.pos < len(d.lines) {
			dep, err := d.depth(d.lines[d.pos])
			if err != nil {
				return nil, err
			}
			if dep > depth {
				return d.parseFields(depth + 1)
			}
		}
		return document.Object(), nil
	}
	rest := l.text[2:]
	if rest != "" && rest[0] == '[' {
		hdr, tail, err := parseHeader(rest)
		if err != nil {
			return nil, d.errorf(l, "%s", errMessage(err))
		}
		return d.parseArrayBody(hdr, tail, depth)
	}
	v, err := parseScalar(rest)
	if err != nil {
		return nil, d.errorf(l, "%s", errMessage(err))
	}
	return v, nil
}

func errMessage(err error) string {
	if pe, ok := err.(*ParseError); ok {
		return pe.Message
	}
	return err.Error()
}
