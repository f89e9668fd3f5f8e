package format

import (
	"github.com/formfold/formfold/document"
	"github.com/formfold/formfold/toon"
)

// TOONAdapter wraps the TOON structural encoder.
type TOONAdapter struct{}

// ID returns the representation id.
func (TOONAdapter) ID() ID { return TOON }

// Serialize emits the document as TOON. Encoding failures degrade to an
// empty string so one broken derived view cannot block the others.
func (TOONAdapter) Serialize(doc *document.Value, opts Options) string {
	out, err := toon.EncodeWithOptions(doc, toon.Options{
		Indent:    opts.Indent,
		Delimiter: opts.Delimiter,
	})
	if err != nil {
		return ""
	}
	return out
}

// Parse decodes TOON text into a document.
func (TOONAdapter) Parse(text string) (*document.Value, error) {
	v, err := toon.Decode(text)
	if err != nil {
		return nil, &ParseError{Format: TOON, Message: err.Error()}
	}
	return v, nil
}
