// Package session defines the minimal sharable session state and the
// compact reversible token codec used for link sharing.
package session

import (
	"github.com/formfold/formfold/format"
)

// State is everything needed to reconstruct a session: the canonical text
// and the formatting options. Lifecycle is ephemeral; it is rebuilt from a
// share token when one is present and defaulted otherwise.
type State struct {
	JSON      string `json:"json"`
	Delimiter string `json:"delimiter"`
	Indent    int    `json:"indent"`
}

// DefaultJSON is the bundled example document.
const DefaultJSON = `{
  "users": [
    { "id": 1, "name": "Ada Lovelace", "role": "admin", "active": true },
    { "id": 2, "name": "Grace Hopper", "role": "engineer", "active": true },
    { "id": 3, "name": "Alan Turing", "role": "analyst", "active": false }
  ]
}`

// Default returns the state used when no share token is present or a
// token fails to decode.
func Default() State {
	return State{
		JSON:      DefaultJSON,
		Delimiter: string(rune(format.DefaultDelimiter)),
		Indent:    format.DefaultIndent,
	}
}

// Valid reports whether the state is structurally acceptable: non-empty
// canonical text, a known one-character delimiter, and an in-range indent.
func (s State) Valid() bool {
	if s.JSON == "" {
		return false
	}
	if len(s.Delimiter) != 1 || !format.ValidDelimiter(s.Delimiter[0]) {
		return false
	}
	return s.Indent >= 0 && s.Indent <= format.MaxIndent
}

// Options converts the state's formatting fields.
func (s State) Options() format.Options {
	o := format.Options{Indent: s.Indent, Delimiter: format.DefaultDelimiter}
	if len(s.Delimiter) == 1 {
		o.Delimiter = s.Delimiter[0]
	}
	return o.Normalize()
}
