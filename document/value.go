// Package document defines the canonical in-memory document model shared by
// every notation adapter: an arbitrary tree of JSON-model values with
// insertion-ordered object fields.
package document

import (
	"fmt"
	"math"
	"strconv"
)

// Kind represents document value types.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindObject
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value represents a single document node.
type Value struct {
	kind Kind

	// Scalar values (only one valid based on kind)
	boolVal bool
	numVal  float64
	strVal  string

	// Container values
	listVal []*Value
	objVal  []Field
}

// Field represents a key-value pair in an object.
// Field order is preserved: the canonical text's key order is meaningful
// and must survive every parse/serialize cycle.
type Field struct {
	Key   string
	Value *Value
}

// ============================================================
// Constructors
// ============================================================

// Null creates a null value.
func Null() *Value {
	return &Value{kind: KindNull}
}

// Bool creates a boolean value.
func Bool(v bool) *Value {
	return &Value{kind: KindBool, boolVal: v}
}

// Number creates a numeric value.
func Number(v float64) *Value {
	return &Value{kind: KindNumber, numVal: v}
}

// Str creates a string value.
func Str(v string) *Value {
	return &Value{kind: KindString, strVal: v}
}

// List creates a list value.
func List(items ...*Value) *Value {
	return &Value{kind: KindList, listVal: items}
}

// Object creates an object value from ordered fields.
func Object(fields ...Field) *Value {
	return &Value{kind: KindObject, objVal: fields}
}

// F creates a Field for use in Object construction.
func F(key string, value *Value) Field {
	return Field{Key: key, Value: value}
}

// ============================================================
// Accessors
// ============================================================

// Kind returns the value kind. A nil value reads as null.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

// IsNull returns true if this is a null value.
func (v *Value) IsNull() bool {
	return v == nil || v.kind == KindNull
}

// AsBool returns the boolean value.
func (v *Value) AsBool() (bool, error) {
	if v == nil {
		return false, fmt.Errorf("document: nil value")
	}
	if v.kind != KindBool {
		return false, fmt.Errorf("document: expected bool, got %s", v.kind)
	}
	return v.boolVal, nil
}

// AsNumber returns the numeric value.
func (v *Value) AsNumber() (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("document: nil value")
	}
	if v.kind != KindNumber {
		return 0, fmt.Errorf("document: expected number, got %s", v.kind)
	}
	return v.numVal, nil
}

// AsString returns the string value.
func (v *Value) AsString() (string, error) {
	if v == nil {
		return "", fmt.Errorf("document: nil value")
	}
	if v.kind != KindString {
		return "", fmt.Errorf("document: expected string, got %s", v.kind)
	}
	return v.strVal, nil
}

// AsList returns the list elements.
func (v *Value) AsList() ([]*Value, error) {
	if v == nil {
		return nil, fmt.Errorf("document: nil value")
	}
	if v.kind != KindList {
		return nil, fmt.Errorf("document: expected list, got %s", v.kind)
	}
	return v.listVal, nil
}

// AsObject returns the object fields in insertion order.
func (v *Value) AsObject() ([]Field, error) {
	if v == nil {
		return nil, fmt.Errorf("document: nil value")
	}
	if v.kind != KindObject {
		return nil, fmt.Errorf("document: expected object, got %s", v.kind)
	}
	return v.objVal, nil
}

// Len returns the length of a list or object.
func (v *Value) Len() int {
	if v == nil {
		return 0
	}
	switch v.kind {
	case KindList:
		return len(v.listVal)
	case KindObject:
		return len(v.objVal)
	default:
		return 0
	}
}

// Get returns a field value by key from an object, or nil.
func (v *Value) Get(key string) *Value {
	if v == nil || v.kind != KindObject {
		return nil
	}
	for _, f := range v.objVal {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// Index returns the i-th element of a list.
func (v *Value) Index(i int) (*Value, error) {
	if v == nil || v.kind != KindList {
		return nil, fmt.Errorf("document: not a list")
	}
	if i < 0 || i >= len(v.listVal) {
		return nil, fmt.Errorf("document: index %d out of bounds (len=%d)", i, len(v.listVal))
	}
	return v.listVal[i], nil
}

// ============================================================
// Mutators
// ============================================================

// Set sets a field value on an object, appending when the key is new.
func (v *Value) Set(key string, val *Value) {
	if v.kind != KindObject {
		panic("document: cannot set on non-object")
	}
	for i := range v.objVal {
		if v.objVal[i].Key == key {
			v.objVal[i].Value = val
			return
		}
	}
	v.objVal = append(v.objVal, Field{Key: key, Value: val})
}

// Append adds a value to a list.
func (v *Value) Append(val *Value) {
	if v.kind != KindList {
		panic("document: cannot append to non-list")
	}
	v.listVal = append(v.listVal, val)
}

// ============================================================
// Snapshots and Equality
// ============================================================

// Clone returns a deep copy. Components outside the synchronization
// engine only ever receive clones of the canonical document.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := &Value{
		kind:    v.kind,
		boolVal: v.boolVal,
		numVal:  v.numVal,
		strVal:  v.strVal,
	}
	if v.listVal != nil {
		out.listVal = make([]*Value, len(v.listVal))
		for i, e := range v.listVal {
			out.listVal[i] = e.Clone()
		}
	}
	if v.objVal != nil {
		out.objVal = make([]Field, len(v.objVal))
		for i, f := range v.objVal {
			out.objVal[i] = Field{Key: f.Key, Value: f.Value.Clone()}
		}
	}
	return out
}

// Equal reports deep equality, including object field order.
func (v *Value) Equal(other *Value) bool {
	if v.IsNull() && other.IsNull() {
		return true
	}
	if v == nil || other == nil || v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.boolVal == other.boolVal
	case KindNumber:
		return v.numVal == other.numVal
	case KindString:
		return v.strVal == other.strVal
	case KindList:
		if len(v.listVal) != len(other.listVal) {
			return false
		}
		for i := range v.listVal {
			if !v.listVal[i].Equal(other.listVal[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.objVal) != len(other.objVal) {
			return false
		}
		for i := range v.objVal {
			if v.objVal[i].Key != other.objVal[i].Key {
				return false
			}
			if !v.objVal[i].Value.Equal(other.objVal[i].Value) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// ============================================================
// Canonical Scalar Encoding
// ============================================================

// FormatNumber returns the canonical textual form of a number.
// Integral values print with no fraction, everything else uses the
// shortest representation that round-trips. NaN and infinities have no
// JSON form and degrade to null.
func FormatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "null"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
