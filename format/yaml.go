package format

import (
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/formfold/formfold/document"
)

// YAMLAdapter is the general-purpose hierarchical notation. The engine
// treats YAML as derived-only, but Parse is still implemented so the
// adapter round-trips on its own.
type YAMLAdapter struct{}

// ID returns the representation id.
func (YAMLAdapter) ID() ID { return YAML }

// Serialize emits the document as YAML. The indent width is honored
// literally, including 0.
func (YAMLAdapter) Serialize(doc *document.Value, opts Options) string {
	out, err := yaml.MarshalWithOptions(toYAMLValue(doc), yaml.Indent(opts.Indent))
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(string(out), "\n")
}

// Parse decodes YAML text into a document, preserving mapping key order.
func (YAMLAdapter) Parse(text string) (*document.Value, error) {
	var v interface{}
	if err := yaml.UnmarshalWithOptions([]byte(text), &v, yaml.UseOrderedMap()); err != nil {
		return nil, &ParseError{Format: YAML, Message: err.Error()}
	}
	doc, err := fromYAMLValue(v)
	if err != nil {
		return nil, &ParseError{Format: YAML, Message: err.Error()}
	}
	return doc, nil
}

// toYAMLValue converts a document into goccy's encoding model. Objects
// become yaml.MapSlice so field order survives; integral numbers become
// ints so they print without a fraction.
func toYAMLValue(v *document.Value) interface{} {
	switch v.Kind() {
	case document.KindNull:
		return nil
	case document.KindBool:
		b, _ := v.AsBool()
		return b
	case document.KindNumber:
		n, _ := v.AsNumber()
		if n == float64(int64(n)) {
			return int64(n)
		}
		return n
	case document.KindString:
		s, _ := v.AsString()
		return s
	case document.KindList:
		items, _ := v.AsList()
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = toYAMLValue(item)
		}
		return out
	case document.KindObject:
		fields, _ := v.AsObject()
		out := make(yaml.MapSlice, len(fields))
		for i, f := range fields {
			out[i] = yaml.MapItem{Key: f.Key, Value: toYAMLValue(f.Value)}
		}
		return out
	default:
		return nil
	}
}

func fromYAMLValue(v interface{}) (*document.Value, error) {
	switch val := v.(type) {
	case nil:
		return document.Null(), nil
	case bool:
		return document.Bool(val), nil
	case int:
		return document.Number(float64(val)), nil
	case int64:
		return document.Number(float64(val)), nil
	case uint64:
		return document.Number(float64(val)), nil
	case float64:
		return document.Number(val), nil
	case string:
		return document.Str(val), nil
	case time.Time:
		return document.Str(val.Format(time.RFC3339)), nil
	case []interface{}:
		list := document.List()
		for _, item := range val {
			dv, err := fromYAMLValue(item)
			if err != nil {
				return nil, err
			}
			list.Append(dv)
		}
		return list, nil
	case yaml.MapSlice:
		obj := document.Object()
		for _, item := range val {
			dv, err := fromYAMLValue(item.Value)
			if err != nil {
				return nil, err
			}
			key, ok := item.Key.(string)
			if !ok {
				key = toKeyString(item.Key)
			}
			obj.Set(key, dv)
		}
		return obj, nil
	default:
		return nil, &ParseError{Format: YAML, Message: "unsupported YAML node"}
	}
}

// toKeyString renders non-string mapping keys (numbers, booleans) the way
// the JSON model requires.
func toKeyString(k interface{}) string {
	switch v := k.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int64:
		return document.FormatNumber(float64(v))
	case uint64:
		return document.FormatNumber(float64(v))
	case float64:
		return document.FormatNumber(v)
	default:
		return ""
	}
}
