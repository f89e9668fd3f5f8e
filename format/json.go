package format

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/formfold/formfold/document"
)

// JSONAdapter is the canonical notation: identity parse/serialize with
// pretty-printing. It is available synchronously at startup since it backs
// the default example document.
type JSONAdapter struct{}

// ID returns the representation id.
func (JSONAdapter) ID() ID { return JSON }

// Serialize emits the document as JSON. Indent 0 produces a single
// compact line; object key order follows the document.
func (JSONAdapter) Serialize(doc *document.Value, opts Options) string {
	var b strings.Builder
	appendJSON(&b, doc)
	if opts.Indent <= 0 {
		return b.String()
	}
	out := pretty.PrettyOptions([]byte(b.String()), &pretty.Options{
		Width:  80,
		Indent: strings.Repeat(" ", opts.Indent),
	})
	return strings.TrimSuffix(string(out), "\n")
}

// Parse validates and parses JSON text into a document, preserving object
// key order. gjson does the ordered walk; the error message for malformed
// input comes from encoding/json, which reports position detail gjson
// does not.
func (JSONAdapter) Parse(text string) (*document.Value, error) {
	if !gjson.Valid(text) {
		var probe interface{}
		if err := json.Unmarshal([]byte(text), &probe); err != nil {
			return nil, &ParseError{Format: JSON, Message: err.Error()}
		}
		return nil, &ParseError{Format: JSON, Message: "invalid JSON"}
	}
	return fromResult(gjson.Parse(text)), nil
}

func fromResult(r gjson.Result) *document.Value {
	switch {
	case r.IsObject():
		obj := document.Object()
		r.ForEach(func(k, v gjson.Result) bool {
			obj.Set(k.String(), fromResult(v))
			return true
		})
		return obj
	case r.IsArray():
		list := document.List()
		r.ForEach(func(_, v gjson.Result) bool {
			list.Append(fromResult(v))
			return true
		})
		return list
	}
	switch r.Type {
	case gjson.Null:
		return document.Null()
	case gjson.True:
		return document.Bool(true)
	case gjson.False:
		return document.Bool(false)
	case gjson.Number:
		return document.Number(r.Num)
	default:
		return document.Str(r.Str)
	}
}

// ============================================================
// Compact Ordered Emission
// ============================================================

// appendJSON writes compact JSON, keeping object field order. It is also
// used by the CSV adapter to stringify nested cells.
func appendJSON(b *strings.Builder, v *document.Value) {
	switch v.Kind() {
	case document.KindNull:
		b.WriteString("null")
	case document.KindBool:
		val, _ := v.AsBool()
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case document.KindNumber:
		n, _ := v.AsNumber()
		b.WriteString(document.FormatNumber(n))
	case document.KindString:
		s, _ := v.AsString()
		appendJSONString(b, s)
	case document.KindList:
		items, _ := v.AsList()
		b.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				b.WriteByte(',')
			}
			appendJSON(b, item)
		}
		b.WriteByte(']')
	case document.KindObject:
		fields, _ := v.AsObject()
		b.WriteByte('{')
		for i, f := range fields {
			if i > 0 {
				b.WriteByte(',')
			}
			appendJSONString(b, f.Key)
			b.WriteByte(':')
			appendJSON(b, f.Value)
		}
		b.WriteByte('}')
	}
}

const hexDigits = "0123456789abcdef"

func appendJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hexDigits[(r>>4)&0xf])
				b.WriteByte(hexDigits[r&0xf])
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
