package document

import (
	"testing"
)

func TestValue_Kinds(t *testing.T) {
	tests := []struct {
		name     string
		value    *Value
		expected Kind
	}{
		{"null", Null(), KindNull},
		{"bool", Bool(true), KindBool},
		{"number", Number(3.14), KindNumber},
		{"string", Str("hi"), KindString},
		{"list", List(Number(1)), KindList},
		{"object", Object(F("a", Number(1))), KindObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value.Kind() != tt.expected {
				t.Errorf("Expected kind %s, got %s", tt.expected, tt.value.Kind())
			}
		})
	}
}

func TestValue_NilReadsAsNull(t *testing.T) {
	var v *Value
	if v.Kind() != KindNull {
		t.Errorf("Expected nil value to read as null, got %s", v.Kind())
	}
	if !v.IsNull() {
		t.Error("Expected IsNull on nil value")
	}
}

func TestValue_AccessorTypeChecks(t *testing.T) {
	v := Str("hello")
	if _, err := v.AsNumber(); err == nil {
		t.Error("Expected error reading string as number")
	}
	s, err := v.AsString()
	if err != nil {
		t.Fatalf("AsString failed: %v", err)
	}
	if s != "hello" {
		t.Errorf("Unexpected string value %q", s)
	}
}

func TestValue_ObjectOrder(t *testing.T) {
	obj := Object(F("z", Number(1)), F("a", Number(2)))
	obj.Set("m", Number(3))
	obj.Set("z", Number(9)) // replace keeps position

	fields, err := obj.AsObject()
	if err != nil {
		t.Fatalf("AsObject failed: %v", err)
	}
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.Key
	}
	expected := []string{"z", "a", "m"}
	for i := range expected {
		if keys[i] != expected[i] {
			t.Fatalf("Expected key order %v, got %v", expected, keys)
		}
	}
	if n, _ := obj.Get("z").AsNumber(); n != 9 {
		t.Errorf("Expected replaced value 9, got %v", n)
	}
}

func TestValue_CloneIsDeep(t *testing.T) {
	orig := Object(F("list", List(Number(1), Number(2))))
	copied := orig.Clone()

	orig.Get("list").Append(Number(3))

	if copied.Get("list").Len() != 2 {
		t.Errorf("Clone shares list storage with original")
	}
	if !copied.Equal(Object(F("list", List(Number(1), Number(2))))) {
		t.Errorf("Clone changed value content")
	}
}

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name  string
		a, b  *Value
		equal bool
	}{
		{"same scalars", Number(1), Number(1), true},
		{"different scalars", Number(1), Number(2), false},
		{"kind mismatch", Number(1), Str("1"), false},
		{"nil vs null", nil, Null(), true},
		{
			"same objects",
			Object(F("a", Number(1)), F("b", Bool(true))),
			Object(F("a", Number(1)), F("b", Bool(true))),
			true,
		},
		{
			"field order matters",
			Object(F("a", Number(1)), F("b", Number(2))),
			Object(F("b", Number(2)), F("a", Number(1))),
			false,
		},
		{
			"nested lists",
			List(List(Number(1)), Null()),
			List(List(Number(1)), Null()),
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal = %v, expected %v", got, tt.equal)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in       float64
		expected string
	}{
		{0, "0"},
		{1, "1"},
		{-42, "-42"},
		{3.14, "3.14"},
		{-0.5, "-0.5"},
		{1e6, "1000000"},
		{0.25, "0.25"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatNumber(tt.in); got != tt.expected {
				t.Errorf("FormatNumber(%v) = %q, expected %q", tt.in, got, tt.expected)
			}
		})
	}
}
