// Package engine owns the canonical document and keeps every alternate
// representation in sync with it. It is the only component that mutates
// the document; everything else sees snapshots.
package engine

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/formfold/formfold/cost"
	"github.com/formfold/formfold/document"
	"github.com/formfold/formfold/format"
	"github.com/formfold/formfold/session"
)

// Representation is the public view of one notation pane.
type Representation struct {
	ID       format.ID
	Text     string
	Editable bool

	// Available is false until the adapter finishes loading; until then
	// Text stays empty and the token count undefined.
	Available bool

	// TokenCount is meaningful only when HasTokenCount is true (the
	// tokenizer has loaded and the text is non-empty).
	TokenCount    int
	HasTokenCount bool

	// Savings compares this representation against the canonical one;
	// nil for the canonical representation and while counts are missing.
	Savings *cost.Savings
}

// AdapterLoader resolves one asynchronously loaded adapter.
type AdapterLoader func() (format.Adapter, error)

// CounterLoader resolves the asynchronously loaded tokenizer.
type CounterLoader func() (cost.Counter, error)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithCounter installs a token counter synchronously (tests, CLI).
func WithCounter(c cost.Counter) Option {
	return func(e *Engine) { e.counter = c }
}

// WithShareSink registers the callback that receives freshly encoded share
// tokens, debounced by delay. The caller typically writes the token into
// the address bar or equivalent.
func WithShareSink(delay time.Duration, sink func(token string)) Option {
	return func(e *Engine) {
		e.onShare = sink
		e.share = newDebouncer(delay)
	}
}

// Engine is the synchronization controller. All mutation happens behind
// one mutex; each mutating call completes its full derivation pass before
// the next is considered, so derived representations never observe a
// half-applied document.
type Engine struct {
	mu sync.Mutex

	log     *zap.Logger
	reg     *format.Registry
	opts    format.Options
	doc     *document.Value
	errMsg  string
	active  format.ID
	order   []format.ID
	reps    map[format.ID]*Representation
	counter cost.Counter

	share   *debouncer
	onShare func(token string)
}

// New creates an engine with the canonical JSON adapter installed
// synchronously and the default example session applied. TOON, YAML and
// CSV stay unavailable until their adapters are installed (normally via
// LoadAdapters).
func New(opts ...Option) *Engine {
	e := &Engine{
		log:    zap.NewNop(),
		reg:    format.NewRegistry(),
		opts:   format.DefaultOptions(),
		active: format.JSON,
		order:  []format.ID{format.JSON, format.TOON, format.YAML, format.CSV},
		reps:   make(map[format.ID]*Representation),
	}
	for _, id := range e.order {
		e.reps[id] = &Representation{
			ID:       id,
			Editable: id != format.YAML, // YAML is the derived-only pane
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	e.reg.Register(format.JSONAdapter{})
	e.applyState(session.Default())
	return e
}

// Restore applies a share token, falling back to the default session when
// the token is absent or fails to decode. Decode failure is never surfaced
// as an error.
func (e *Engine) Restore(token string) {
	state, ok := session.Decode(token)
	if !ok {
		if token != "" {
			e.log.Info("share token rejected, using defaults")
		}
		state = session.Default()
	}
	e.applyState(state)
}

func (e *Engine) applyState(state session.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts = state.Options()
	e.active = format.JSON
	e.reps[format.JSON].Text = state.JSON
	_ = e.applyCanonicalLocked(state.JSON)
}

// Focus marks the representation whose edits drive the canonical document.
// Bookkeeping only; no derivation happens.
func (e *Engine) Focus(id format.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.reps[id]; ok {
		e.active = id
	}
}

// Active returns the currently active representation id.
func (e *Engine) Active() format.ID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Edit applies user input to one representation per the synchronization
// rules: canonical edits re-derive every sibling on success and surface
// the parse error on failure, freezing derived text until corrected;
// alternate edits feed back only while their pane is active, and their
// parse failures stay silent because the user is assumed to be mid-edit.
// The edited pane's own text is never overwritten by derivation.
func (e *Engine) Edit(id format.ID, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rep, ok := e.reps[id]
	if !ok {
		return fmt.Errorf("engine: unknown representation %q", id)
	}
	rep.Text = text

	if id == format.JSON {
		return e.applyCanonicalLocked(text)
	}

	if !rep.Editable || e.active != id {
		e.recountLocked()
		return nil
	}
	adapter, ok := e.reg.Lookup(id)
	if !ok {
		e.recountLocked()
		return nil
	}
	parser, ok := adapter.(format.Parser)
	if !ok {
		e.recountLocked()
		return nil
	}
	doc, err := parser.Parse(text)
	if err != nil {
		e.log.Debug("alternate parse tolerated",
			zap.String("representation", string(id)),
			zap.String("reason", err.Error()))
		e.recountLocked()
		return nil
	}

	e.doc = doc
	e.errMsg = ""
	e.deriveLocked()
	e.recountLocked()
	e.scheduleShareLocked()
	return nil
}

// applyCanonicalLocked parses canonical text and, on success, re-derives
// the siblings. On failure the previous document is kept and every derived
// representation freezes at last-good text.
func (e *Engine) applyCanonicalLocked(text string) error {
	doc, err := (format.JSONAdapter{}).Parse(text)
	if err != nil {
		e.errMsg = err.Error()
		e.log.Debug("canonical parse failed", zap.String("reason", e.errMsg))
		e.recountLocked()
		e.scheduleShareLocked()
		return err
	}
	e.doc = doc
	e.errMsg = ""
	if e.active == format.JSON {
		e.deriveLocked()
	}
	e.recountLocked()
	e.scheduleShareLocked()
	return nil
}

// SetOptions replaces the session-wide formatting options and re-derives
// every non-active representation from the unchanged document. Whatever
// the user is typing into is never reformatted under them.
func (e *Engine) SetOptions(opts format.Options) {
	e.mu.Lock()
	defer e.mu.Unlock()
	opts = opts.Normalize()
	if opts == e.opts {
		return
	}
	e.opts = opts
	e.deriveLocked()
	e.recountLocked()
	e.scheduleShareLocked()
}

// Options returns the current formatting options.
func (e *Engine) Options() format.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// InstallAdapter installs a loaded adapter and runs one idempotent
// synchronization pass so the newly available pane picks up the current
// document.
func (e *Engine) InstallAdapter(a format.Adapter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reg.Register(a)
	e.log.Info("adapter ready", zap.String("representation", string(a.ID())))
	e.deriveLocked()
	e.recountLocked()
}

// InstallCounter installs the loaded tokenizer and recounts everything.
func (e *Engine) InstallCounter(c cost.Counter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counter = c
	e.log.Info("tokenizer ready")
	e.recountLocked()
}

// LoadAdapters resolves adapters in the background, once each. A loader
// that fails leaves its representation permanently unavailable; there is
// no retry.
func (e *Engine) LoadAdapters(loaders ...AdapterLoader) {
	for _, load := range loaders {
		go func(load AdapterLoader) {
			a, err := load()
			if err != nil {
				e.log.Warn("adapter load failed", zap.Error(err))
				return
			}
			e.InstallAdapter(a)
		}(load)
	}
}

// LoadCounter resolves the tokenizer in the background. Token counts stay
// undefined if loading fails.
func (e *Engine) LoadCounter(load CounterLoader) {
	go func() {
		c, err := load()
		if err != nil {
			e.log.Warn("tokenizer load failed", zap.Error(err))
			return
		}
		e.InstallCounter(c)
	}()
}

// ParseError returns the canonical parse error message, empty when the
// document is healthy. Only canonical errors are user-visible.
func (e *Engine) ParseError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errMsg
}

// Document returns a snapshot of the canonical document, nil when the
// session has never parsed successfully.
func (e *Engine) Document() *document.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// Snapshot returns copies of every representation in pane order.
func (e *Engine) Snapshot() []Representation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Representation, 0, len(e.order))
	for _, id := range e.order {
		rep := *e.reps[id]
		rep.Available = e.reg.Has(id)
		if rep.Savings != nil {
			s := *rep.Savings
			rep.Savings = &s
		}
		out = append(out, rep)
	}
	return out
}

// ShareToken encodes the current session state synchronously.
func (e *Engine) ShareToken() (string, error) {
	e.mu.Lock()
	state := e.stateLocked()
	e.mu.Unlock()
	return session.Encode(state)
}

// Close stops the pending share sync, if any.
func (e *Engine) Close() {
	if e.share != nil {
		e.share.stop()
	}
}

// ============================================================
// Derivation Pass
// ============================================================

// deriveLocked re-serializes every representation except the active one
// from the canonical document. Skipping the active pane is the
// anti-feedback-loop invariant: text is only ever overwritten by
// derivation when nobody is typing into it. In the error state nothing is
// derived, so siblings freeze at last-good text.
func (e *Engine) deriveLocked() {
	if e.doc == nil || e.errMsg != "" {
		return
	}
	for _, id := range e.order {
		if id == e.active {
			continue
		}
		adapter, ok := e.reg.Lookup(id)
		if !ok {
			continue
		}
		e.reps[id].Text = adapter.Serialize(e.doc, e.opts)
	}
	e.log.Debug("derivation pass",
		zap.String("active", string(e.active)),
		zap.Int("indent", e.opts.Indent))
}

// recountLocked refreshes token counts and savings for every pane.
func (e *Engine) recountLocked() {
	for _, rep := range e.reps {
		rep.HasTokenCount = false
		rep.TokenCount = 0
		rep.Savings = nil
		if e.counter == nil || rep.Text == "" {
			continue
		}
		rep.TokenCount = e.counter.Count(rep.Text)
		rep.HasTokenCount = true
	}
	base := e.reps[format.JSON]
	if !base.HasTokenCount {
		return
	}
	for id, rep := range e.reps {
		if id == format.JSON || !rep.HasTokenCount {
			continue
		}
		rep.Savings = cost.Compare(base.TokenCount, rep.TokenCount)
	}
}

// ============================================================
// Share Sync
// ============================================================

func (e *Engine) stateLocked() session.State {
	return session.State{
		JSON:      e.reps[format.JSON].Text,
		Delimiter: string(rune(e.opts.Delimiter)),
		Indent:    e.opts.Indent,
	}
}

// scheduleShareLocked arms the coalescing share-token sync. Only the last
// pending invocation within the window runs.
func (e *Engine) scheduleShareLocked() {
	if e.share == nil || e.onShare == nil {
		return
	}
	state := e.stateLocked()
	e.share.trigger(func() {
		token, err := session.Encode(state)
		if err != nil {
			e.log.Warn("share encode failed", zap.Error(err))
			return
		}
		e.onShare(token)
	})
}
