// Package cost computes per-representation token counts and the relative
// savings of each alternate notation against the canonical one. Results
// are display values only; nothing downstream depends on them for
// correctness.
package cost

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter returns an integer cost for a string.
type Counter interface {
	Count(text string) int
}

// ============================================================
// Tokenizers
// ============================================================

// TiktokenCounter counts BPE tokens. Constructing one loads encoding data,
// which can take a while or fail; it is the dependency the engine loads
// asynchronously.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the o200k_base encoding.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return nil, fmt.Errorf("cost: load tokenizer: %w", err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// HeuristicCounter estimates tokens without BPE data: max(bytes/3, runes/2),
// a conservative bound for BPE tokenizers on mixed text. Used where loading
// real encoding data is not worth it (tests, offline CLI runs).
type HeuristicCounter struct{}

// Count returns the estimated token count.
func (HeuristicCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	byBytes := len(text) / 3
	byRunes := utf8.RuneCountInString(text) / 2
	if byRunes > byBytes {
		return byRunes
	}
	return byBytes
}

// ============================================================
// Savings
// ============================================================

// Savings describes how a representation's token count compares to the
// canonical representation's.
type Savings struct {
	Diff        int    // base - compare
	Percent     string // |Diff|/base*100, one decimal
	Sign        string // "-" when compare is cheaper, "+" otherwise
	Improvement bool   // true when compare is cheaper
}

// Compare computes savings of compare against base. It returns nil when
// either count is zero: a zero base would divide by zero, and a zero
// compare means that representation has no text to compare yet.
func Compare(base, compare int) *Savings {
	if base == 0 || compare == 0 {
		return nil
	}
	diff := base - compare
	percent := math.Abs(float64(diff)/float64(base)) * 100
	s := &Savings{
		Diff:        diff,
		Percent:     fmt.Sprintf("%.1f", percent),
		Sign:        "+",
		Improvement: diff > 0,
	}
	if diff > 0 {
		s.Sign = "-"
	}
	return s
}
