package toon

import (
	"strconv"
	"strings"
)

// header describes a parsed array header such as key[3]:, [2|]{a|b}: etc.
type header struct {
	count int
	delim byte
	cols  []string // non-nil for tabular arrays
}

// splitFieldLine splits an object field line into key, optional array
// header, and the value text after the colon. ok is false when the line is
// not shaped like a field, which the root parser uses to recognize scalar
// documents.
func splitFieldLine(s string) (key string, hdr *header, rest string, ok bool) {
	var tail string
	if strings.HasPrefix(s, `"`) {
		k, t, err := unquoteString(s)
		if err != nil {
			return "", nil, "", false
		}
		key, tail = k, t
	} else {
		idx := strings.IndexAny(s, ":[")
		if idx <= 0 {
			return "", nil, "", false
		}
		key = strings.TrimRight(s[:idx], " ")
		tail = s[idx:]
	}

	if strings.HasPrefix(tail, "[") {
		h, r, err := parseHeader(tail)
		if err != nil {
			return "", nil, "", false
		}
		return key, h, r, true
	}
	if strings.HasPrefix(tail, ":") {
		return key, nil, strings.TrimSpace(tail[1:]), true
	}
	return "", nil, "", false
}

// parseHeader parses an array header starting at '[' and consumes through
// the trailing ':'. It returns the remaining inline text, trimmed.
func parseHeader(s string) (*header, string, error) {
	if len(s) == 0 || s[0] != '[' {
		return nil, "", &ParseError{Message: "expected array header"}
	}
	i := 1
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return nil, "", &ParseError{Message: "array header is missing a length"}
	}
	count, err := strconv.Atoi(s[start:i])
	if err != nil {
		return nil, "", &ParseError{Message: "invalid array length"}
	}

	h := &header{count: count, delim: ','}
	if i < len(s) && s[i] != ']' {
		switch s[i] {
		case '\t', '|':
			h.delim = s[i]
			i++
		default:
			return nil, "", &ParseError{Message: "invalid delimiter declaration in array header"}
		}
	}
	if i >= len(s) || s[i] != ']' {
		return nil, "", &ParseError{Message: "unterminated array header"}
	}
	i++

	if i < len(s) && s[i] == '{' {
		end, err := findClosingBrace(s, i)
		if err != nil {
			return nil, "", err
		}
		cols, err := parseColumns(s[i+1:end], h.delim)
		if err != nil {
			return nil, "", err
		}
		h.cols = cols
		i = end + 1
	}

	if i >= len(s) || s[i] != ':' {
		return nil, "", &ParseError{Message: "array header is missing a colon"}
	}
	return h, strings.TrimSpace(s[i+1:]), nil
}

// findClosingBrace locates the matching '}' for the '{' at start, skipping
// quoted column names.
func findClosingBrace(s string, start int) (int, error) {
	inQuote := false
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case '}':
			if !inQuote {
				return i, nil
			}
		}
	}
	return 0, &ParseError{Message: "unterminated column list"}
}

// parseColumns splits a tabular column list by the array delimiter.
func parseColumns(s string, delim byte) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return []string{}, nil
	}
	raw, err := splitCells(s, delim)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(raw))
	for i, c := range raw {
		if strings.HasPrefix(c, `"`) {
			u, rest, err := unquoteString(c)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(rest) != "" {
				return nil, &ParseError{Message: "trailing characters after quoted column name"}
			}
			cols[i] = u
			continue
		}
		cols[i] = c
	}
	return cols, nil
}

// splitCells splits delimited cell text, honoring quoted cells. Cells are
// trimmed of surrounding spaces.
func splitCells(s string, delim byte) ([]string, error) {
	var cells []string
	var b strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if c == '"' {
				inQuote = false
			}
		case c == '"':
			inQuote = true
			b.WriteByte(c)
		case c == delim:
			cells = append(cells, strings.TrimSpace(b.String()))
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	if inQuote {
		return nil, &ParseError{Message: "unterminated quoted cell"}
	}
	cells = append(cells, strings.TrimSpace(b.String()))
	return cells, nil
}
