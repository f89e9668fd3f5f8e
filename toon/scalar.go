package toon

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/formfold/formfold/document"
)

// ============================================================
// Scalar Encoding
// ============================================================

// scalarText returns the textual form of a scalar value. delim is the
// delimiter active in the surrounding context (cells must not contain it
// unquoted).
func scalarText(v *document.Value, delim byte) string {
	switch v.Kind() {
	case document.KindNull:
		return "null"
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
		if isBareSafe(s, delim) {
			return s
		}
		return quoteString(s)
	default:
		return ""
	}
}

func isScalar(v *document.Value) bool {
	switch v.Kind() {
	case document.KindNull, document.KindBool, document.KindNumber, document.KindString:
		return true
	default:
		return false
	}
}

// isBareSafe checks if a string can be written without quotes: it must not
// collide with a keyword or number, carry structural characters, or be
// reshaped by whitespace trimming on decode.
func isBareSafe(s string, delim byte) bool {
	if s == "" {
		return false
	}
	switch s {
	case "true", "false", "null", "-":
		return false
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return false
	}
	if s != strings.TrimSpace(s) {
		return false
	}
	if strings.HasPrefix(s, "- ") {
		return false
	}
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		switch r {
		case '"', ':', '[', ']', '{', '}', ',', '|', '\t', rune(delim):
			return false
		}
		if r != ' ' && unicode.IsControl(r) {
			return false
		}
		i += size
	}
	return true
}

// isBareKey checks if an object key can be written without quotes.
// Pattern: ^[A-Za-z_][A-Za-z0-9_.-]*$
func isBareKey(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_' {
			continue
		}
		if i > 0 && (r >= '0' && r <= '9' || r == '.' || r == '-') {
			continue
		}
		return false
	}
	return true
}

// keyText returns the textual form of an object key or column name.
func keyText(s string) string {
	if isBareKey(s) {
		return s
	}
	return quoteString(s)
}

// quoteString returns a quoted string with JSON-style escapes.
func quoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 10)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				b.WriteString(`\u00`)
				hex := strconv.FormatInt(int64(r), 16)
				if len(hex) == 1 {
					b.WriteByte('0')
				}
				b.WriteString(hex)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// ============================================================
// Scalar Decoding
// ============================================================

// parseScalar converts a cell or value segment back into a document value.
// The segment must already be trimmed.
func parseScalar(s string) (*document.Value, error) {
	if s == "" {
		return document.Str(""), nil
	}
	if s[0] == '"' {
		u, rest, err := unquoteString(s)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(rest) != "" {
			return nil, &ParseError{Message: "trailing characters after quoted string"}
		}
		return document.Str(u), nil
	}
	switch s {
	case "null":
		return document.Null(), nil
	case "true":
		return document.Bool(true), nil
	case "false":
		return document.Bool(false), nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return document.Number(n), nil
	}
	return document.Str(s), nil
}

// unquoteString decodes a leading quoted string and returns the remainder
// of the input after the closing quote.
func unquoteString(s string) (string, string, error) {
	if len(s) == 0 || s[0] != '"' {
		return "", "", &ParseError{Message: "expected opening quote"}
	}
	var b strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		switch c {
		case '"':
			return b.String(), s[i+1:], nil
		case '\\':
			if i+1 >= len(s) {
				return "", "", &ParseError{Message: "unterminated escape sequence"}
			}
			i++
			switch s[i] {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'u':
				if i+4 >= len(s) {
					return "", "", &ParseError{Message: "truncated unicode escape"}
				}
				code, err := strconv.ParseUint(s[i+1:i+5], 16, 32)
				if err != nil {
					return "", "", &ParseError{Message: "invalid unicode escape"}
				}
				b.WriteRune(rune(code))
				i += 4
			default:
				return "", "", &ParseError{Message: "invalid escape character"}
			}
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", "", &ParseError{Message: "unterminated string"}
}
