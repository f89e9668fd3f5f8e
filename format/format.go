// Package format exposes every notation behind one uniform contract:
// serialize a document under shared formatting options, and, for editable
// notations, parse text back into a document.
package format

import (
	"fmt"
	"sync"

	"github.com/formfold/formfold/document"
)

// ID identifies a representation.
type ID string

const (
	JSON ID = "json"
	TOON ID = "toon"
	YAML ID = "yaml"
	CSV  ID = "csv"
)

const (
	DefaultIndent    = 2
	MaxIndent        = 8
	DefaultDelimiter = ','
)

// ValidDelimiter reports whether b is an accepted cell separator.
func ValidDelimiter(b byte) bool {
	switch b {
	case ',', '\t', '|':
		return true
	}
	return false
}

// Options are the session-wide formatting options shared by every
// serialize call.
type Options struct {
	Indent    int
	Delimiter byte
}

// DefaultOptions returns indent 2 with comma delimiter.
func DefaultOptions() Options {
	return Options{Indent: DefaultIndent, Delimiter: DefaultDelimiter}
}

// Normalize clamps out-of-range values to safe defaults.
func (o Options) Normalize() Options {
	if o.Indent < 0 {
		o.Indent = 0
	}
	if o.Indent > MaxIndent {
		o.Indent = MaxIndent
	}
	if !ValidDelimiter(o.Delimiter) {
		o.Delimiter = DefaultDelimiter
	}
	return o
}

// ParseError reports malformed input for one notation.
type ParseError struct {
	Format  ID
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Format, e.Message)
}

// Adapter serializes documents into one notation. Serialize is total: a
// document shape the notation cannot express degrades to an empty string,
// never a panic or an error, so losing one derived view cannot block the
// others.
type Adapter interface {
	ID() ID
	Serialize(doc *document.Value, opts Options) string
}

// Parser is implemented by adapters whose representation is editable.
type Parser interface {
	Parse(text string) (*document.Value, error)
}

// Registry holds adapters keyed by representation id. It is safe for
// concurrent use: asynchronously loaded adapters are installed after
// startup while readers derive text.
type Registry struct {
	mu       sync.RWMutex
	adapters map[ID]Adapter
	order    []ID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[ID]Adapter)}
}

// Register installs an adapter, replacing any previous one with the same id.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.ID()]; !exists {
		r.order = append(r.order, a.ID())
	}
	r.adapters[a.ID()] = a
}

// Lookup returns the adapter for id, if loaded.
func (r *Registry) Lookup(id ID) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	return a, ok
}

// Has reports whether the adapter for id has loaded.
func (r *Registry) Has(id ID) bool {
	_, ok := r.Lookup(id)
	return ok
}

// IDs returns the loaded adapter ids in registration order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ID, len(r.order))
	copy(out, r.order)
	return out
}
