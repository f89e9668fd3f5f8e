package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/formfold/formfold/document"
	"github.com/formfold/formfold/format"
	"github.com/formfold/formfold/session"
)

// lenCounter is a deterministic stand-in for the real tokenizer.
type lenCounter struct{}

func (lenCounter) Count(text string) int { return len(text) }

func repOf(t *testing.T, e *Engine, id format.ID) Representation {
	t.Helper()
	for _, rep := range e.Snapshot() {
		if rep.ID == id {
			return rep
		}
	}
	t.Fatalf("Representation %q missing from snapshot", id)
	return Representation{}
}

// newLoaded returns an engine with every adapter installed synchronously.
func newLoaded(opts ...Option) *Engine {
	e := New(opts...)
	e.InstallAdapter(format.TOONAdapter{})
	e.InstallAdapter(format.YAMLAdapter{})
	e.InstallAdapter(format.CSVAdapter{})
	return e
}

// ============================================================
// Startup
// ============================================================

func TestNew_DefaultSession(t *testing.T) {
	e := New()
	defer e.Close()

	if e.Active() != format.JSON {
		t.Errorf("Expected JSON active, got %q", e.Active())
	}
	if e.ParseError() != "" {
		t.Errorf("Expected healthy start, got error %q", e.ParseError())
	}

	jsonRep := repOf(t, e, format.JSON)
	if !jsonRep.Available {
		t.Error("Canonical adapter should be available synchronously")
	}
	if jsonRep.Text != session.DefaultJSON {
		t.Error("Canonical pane does not hold the example document")
	}

	for _, id := range []format.ID{format.TOON, format.YAML, format.CSV} {
		rep := repOf(t, e, id)
		if rep.Available {
			t.Errorf("%q should be unavailable before its adapter loads", id)
		}
		if rep.Text != "" {
			t.Errorf("%q has text before its adapter loaded: %q", id, rep.Text)
		}
	}

	if repOf(t, e, format.YAML).Editable {
		t.Error("YAML pane must be derived-only")
	}
}

func TestSnapshot_PaneOrder(t *testing.T) {
	e := newLoaded()
	defer e.Close()

	expected := []format.ID{format.JSON, format.TOON, format.YAML, format.CSV}
	snap := e.Snapshot()
	if len(snap) != len(expected) {
		t.Fatalf("Expected %d panes, got %d", len(expected), len(snap))
	}
	for i, rep := range snap {
		if rep.ID != expected[i] {
			t.Errorf("Pane %d is %q, expected %q", i, rep.ID, expected[i])
		}
		if !rep.Available {
			t.Errorf("Pane %q should be available", rep.ID)
		}
	}
}

func TestInstallAdapter_DerivesNewPane(t *testing.T) {
	e := New()
	defer e.Close()

	e.InstallAdapter(format.TOONAdapter{})

	rep := repOf(t, e, format.TOON)
	if !rep.Available {
		t.Fatal("Installed adapter not available")
	}
	expected := format.TOONAdapter{}.Serialize(e.Document(), e.Options())
	if rep.Text != expected {
		t.Errorf("Pane not derived after install\ngot:\n%s\nexpected:\n%s", rep.Text, expected)
	}
}

func TestLoadAdapters_Async(t *testing.T) {
	e := New()
	defer e.Close()

	done := make(chan struct{})
	e.LoadAdapters(func() (format.Adapter, error) {
		defer close(done)
		return format.TOONAdapter{}, nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Adapter loader never ran")
	}
	// Install happens after the loader returns; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for !repOf(t, e, format.TOON).Available {
		if time.Now().After(deadline) {
			t.Fatal("Adapter never installed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ============================================================
// Canonical Edits
// ============================================================

func TestEdit_CanonicalRederivesSiblings(t *testing.T) {
	e := newLoaded()
	defer e.Close()

	if err := e.Edit(format.JSON, `{"a":1,"b":[1,2]}`); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	doc := e.Document()
	opts := e.Options()
	for _, id := range []format.ID{format.TOON, format.YAML, format.CSV} {
		var expected string
		switch id {
		case format.TOON:
			expected = format.TOONAdapter{}.Serialize(doc, opts)
		case format.YAML:
			expected = format.YAMLAdapter{}.Serialize(doc, opts)
		case format.CSV:
			expected = format.CSVAdapter{}.Serialize(doc, opts)
		}
		if got := repOf(t, e, id).Text; got != expected {
			t.Errorf("%q not re-derived\ngot:\n%s\nexpected:\n%s", id, got, expected)
		}
	}
	if got := repOf(t, e, format.CSV).Text; got != "a,b\n1,\"[1,2]\"" {
		t.Errorf("Unexpected CSV rendering: %q", got)
	}
}

func TestEdit_CanonicalErrorFreezesAndRecovers(t *testing.T) {
	e := newLoaded()
	defer e.Close()

	if err := e.Edit(format.JSON, `{"a":1}`); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	frozenTOON := repOf(t, e, format.TOON).Text
	goodDoc := e.Document()

	if err := e.Edit(format.JSON, `{"a":`); err == nil {
		t.Fatal("Expected parse error for truncated JSON")
	}
	if e.ParseError() == "" {
		t.Error("Expected a visible parse error message")
	}
	if got := repOf(t, e, format.JSON).Text; got != `{"a":` {
		t.Errorf("Canonical pane must keep the broken text, got %q", got)
	}
	if got := repOf(t, e, format.TOON).Text; got != frozenTOON {
		t.Error("Derived pane changed during the error state")
	}
	if !e.Document().Equal(goodDoc) {
		t.Error("Document replaced by a failed parse")
	}

	// A later adapter install must not derive from the frozen state either.
	e.InstallAdapter(format.TOONAdapter{})
	if got := repOf(t, e, format.TOON).Text; got != frozenTOON {
		t.Error("Install derived panes while the canonical text is broken")
	}

	if err := e.Edit(format.JSON, `{"a":2}`); err != nil {
		t.Fatalf("Recovery edit failed: %v", err)
	}
	if e.ParseError() != "" {
		t.Errorf("Error message not cleared: %q", e.ParseError())
	}
	expected := format.TOONAdapter{}.Serialize(e.Document(), e.Options())
	if got := repOf(t, e, format.TOON).Text; got != expected {
		t.Error("Derived pane not refreshed after recovery")
	}
}

func TestEdit_CanonicalInactiveStillParses(t *testing.T) {
	e := newLoaded()
	defer e.Close()

	e.Focus(format.TOON)
	toonBefore := repOf(t, e, format.TOON).Text

	if err := e.Edit(format.JSON, `{"z":9}`); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if !e.Document().Equal(document.Object(document.F("z", document.Number(9)))) {
		t.Error("Canonical edit did not update the document")
	}
	// The active pane is TOON, so nothing is derived over it.
	if got := repOf(t, e, format.TOON).Text; got != toonBefore {
		t.Error("Active pane overwritten by an inactive canonical edit")
	}
}

func TestEdit_UnknownRepresentation(t *testing.T) {
	e := New()
	defer e.Close()
	if err := e.Edit("xml", "<a/>"); err == nil {
		t.Error("Expected error for unknown representation")
	}
}

// ============================================================
// Alternate Edits
// ============================================================

func TestEdit_ActiveAlternateFeedsBack(t *testing.T) {
	e := newLoaded()
	defer e.Close()

	e.Focus(format.TOON)
	typed := "a: 1\nb[2]: 1,2"
	if err := e.Edit(format.TOON, typed); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	expected := document.Object(
		document.F("a", document.Number(1)),
		document.F("b", document.List(document.Number(1), document.Number(2))),
	)
	if !e.Document().Equal(expected) {
		t.Error("Alternate edit did not reach the document")
	}
	if got := repOf(t, e, format.TOON).Text; got != typed {
		t.Errorf("Edited pane reformatted under the user: %q", got)
	}
	expectedJSON := format.JSONAdapter{}.Serialize(expected, e.Options())
	if got := repOf(t, e, format.JSON).Text; got != expectedJSON {
		t.Errorf("Canonical pane not re-derived\ngot:\n%s\nexpected:\n%s", got, expectedJSON)
	}
}

func TestEdit_AlternateParseFailureIsSilent(t *testing.T) {
	e := newLoaded()
	defer e.Close()

	e.Focus(format.TOON)
	before := e.Document()
	jsonBefore := repOf(t, e, format.JSON).Text

	// Length marker disagrees with the cell count: mid-edit state.
	if err := e.Edit(format.TOON, "x[2]: 1"); err != nil {
		t.Fatalf("Expected silent tolerance, got %v", err)
	}
	if e.ParseError() != "" {
		t.Error("Alternate parse failure leaked into the visible error")
	}
	if !e.Document().Equal(before) {
		t.Error("Document changed on a failed alternate parse")
	}
	if got := repOf(t, e, format.JSON).Text; got != jsonBefore {
		t.Error("Siblings re-derived on a failed alternate parse")
	}
	if got := repOf(t, e, format.TOON).Text; got != "x[2]: 1" {
		t.Error("Edited pane must keep the typed text")
	}
}

func TestEdit_InactiveAlternateDoesNotFeedBack(t *testing.T) {
	e := newLoaded()
	defer e.Close()

	before := e.Document()
	if err := e.Edit(format.CSV, "a\n1"); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if !e.Document().Equal(before) {
		t.Error("Inactive pane edit reached the document")
	}
	if got := repOf(t, e, format.CSV).Text; got != "a\n1" {
		t.Error("Pane text not stored")
	}
}

func TestEdit_DerivedOnlyPaneNeverFeedsBack(t *testing.T) {
	e := newLoaded()
	defer e.Close()

	e.Focus(format.YAML)
	before := e.Document()
	if err := e.Edit(format.YAML, "z: 9"); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if !e.Document().Equal(before) {
		t.Error("Derived-only pane edit reached the document")
	}
}

func TestEdit_UnavailableAdapterIsIgnored(t *testing.T) {
	e := New(WithCounter(lenCounter{})) // only JSON installed
	defer e.Close()

	e.Focus(format.TOON)
	before := e.Document()
	if err := e.Edit(format.TOON, "a: 1"); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if !e.Document().Equal(before) {
		t.Error("Edit through an unloaded adapter reached the document")
	}

	// The stored text still gets a fresh token count.
	rep := repOf(t, e, format.TOON)
	if !rep.HasTokenCount || rep.TokenCount != len("a: 1") {
		t.Errorf("Pane count stale after edit: %+v", rep)
	}
	if err := e.Edit(format.TOON, "a: 1\nb: 2"); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if rep := repOf(t, e, format.TOON); rep.TokenCount != len("a: 1\nb: 2") {
		t.Errorf("Pane count not refreshed: %+v", rep)
	}
}

// serializeOnly is an adapter without a parser, like a derived-only
// notation loaded in place of an editable one.
type serializeOnly struct{}

func (serializeOnly) ID() format.ID { return format.TOON }

func (serializeOnly) Serialize(*document.Value, format.Options) string { return "stub" }

func TestEdit_NonParserAdapterStillRecounts(t *testing.T) {
	e := New(WithCounter(lenCounter{}))
	defer e.Close()

	e.InstallAdapter(serializeOnly{})
	e.Focus(format.TOON)
	before := e.Document()

	if err := e.Edit(format.TOON, "typed over the stub"); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if !e.Document().Equal(before) {
		t.Error("Edit through a serialize-only adapter reached the document")
	}
	rep := repOf(t, e, format.TOON)
	if !rep.HasTokenCount || rep.TokenCount != len("typed over the stub") {
		t.Errorf("Pane count stale after edit: %+v", rep)
	}
}

// ============================================================
// Options
// ============================================================

func TestSetOptions_RederivesNonActivePanes(t *testing.T) {
	e := newLoaded()
	defer e.Close()

	jsonBefore := repOf(t, e, format.JSON).Text
	e.SetOptions(format.Options{Indent: 4, Delimiter: '|'})

	if e.Options() != (format.Options{Indent: 4, Delimiter: '|'}) {
		t.Fatalf("Options not applied: %+v", e.Options())
	}
	// JSON is active, so its pane keeps the old formatting.
	if got := repOf(t, e, format.JSON).Text; got != jsonBefore {
		t.Error("Active pane reformatted by an options change")
	}
	expected := format.TOONAdapter{}.Serialize(e.Document(), e.Options())
	if got := repOf(t, e, format.TOON).Text; got != expected {
		t.Errorf("Pane not reformatted\ngot:\n%s\nexpected:\n%s", got, expected)
	}
}

func TestSetOptions_OutOfRangeNormalized(t *testing.T) {
	e := New()
	defer e.Close()

	e.SetOptions(format.Options{Indent: 99, Delimiter: ';'})
	opts := e.Options()
	if opts.Indent != format.MaxIndent || opts.Delimiter != ',' {
		t.Errorf("Expected normalized options, got %+v", opts)
	}
}

// ============================================================
// Token Counts
// ============================================================

func TestRecount_WithCounter(t *testing.T) {
	e := newLoaded(WithCounter(lenCounter{}))
	defer e.Close()

	if err := e.Edit(format.JSON, `{"users":[{"id":1,"name":"Ada"},{"id":2,"name":"Grace"}]}`); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	jsonRep := repOf(t, e, format.JSON)
	if !jsonRep.HasTokenCount || jsonRep.TokenCount != len(jsonRep.Text) {
		t.Errorf("Unexpected canonical count %+v", jsonRep)
	}
	if jsonRep.Savings != nil {
		t.Error("Canonical pane must not compare against itself")
	}

	toonRep := repOf(t, e, format.TOON)
	if !toonRep.HasTokenCount {
		t.Fatal("Derived pane missing token count")
	}
	if toonRep.Savings == nil {
		t.Fatal("Derived pane missing savings")
	}
	if toonRep.TokenCount < jsonRep.TokenCount != toonRep.Savings.Improvement {
		t.Errorf("Savings direction inconsistent: %+v vs base %d", toonRep, jsonRep.TokenCount)
	}
}

func TestRecount_NoCounterMeansNoCounts(t *testing.T) {
	e := newLoaded()
	defer e.Close()

	for _, rep := range e.Snapshot() {
		if rep.HasTokenCount || rep.Savings != nil {
			t.Errorf("Pane %q has counts without a tokenizer", rep.ID)
		}
	}
}

func TestInstallCounter_BackfillsCounts(t *testing.T) {
	e := newLoaded()
	defer e.Close()

	e.InstallCounter(lenCounter{})
	rep := repOf(t, e, format.TOON)
	if !rep.HasTokenCount || rep.Savings == nil {
		t.Error("Counts not backfilled after tokenizer install")
	}
}

// ============================================================
// Sessions and Sharing
// ============================================================

func TestRestore(t *testing.T) {
	e := newLoaded()
	defer e.Close()

	token, err := session.Encode(session.State{JSON: `{"x":1}`, Delimiter: "|", Indent: 4})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	e.Restore(token)

	if got := repOf(t, e, format.JSON).Text; got != `{"x":1}` {
		t.Errorf("Canonical text not restored: %q", got)
	}
	if e.Options() != (format.Options{Indent: 4, Delimiter: '|'}) {
		t.Errorf("Options not restored: %+v", e.Options())
	}
	if e.Active() != format.JSON {
		t.Error("Restore must reset focus to the canonical pane")
	}

	e.Restore("not-a-valid-token")
	if got := repOf(t, e, format.JSON).Text; got != session.DefaultJSON {
		t.Error("Invalid token must fall back to the default session")
	}
}

func TestShareToken_RoundTrip(t *testing.T) {
	e := newLoaded()
	defer e.Close()

	e.SetOptions(format.Options{Indent: 3, Delimiter: '\t'})
	if err := e.Edit(format.JSON, `{"k":"v"}`); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	token, err := e.ShareToken()
	if err != nil {
		t.Fatalf("ShareToken failed: %v", err)
	}
	state, ok := session.Decode(token)
	if !ok {
		t.Fatal("Own share token failed to decode")
	}
	if state.JSON != `{"k":"v"}` || state.Indent != 3 || state.Delimiter != "\t" {
		t.Errorf("Unexpected decoded state %+v", state)
	}
}

func TestShareSink_Debounced(t *testing.T) {
	var mu sync.Mutex
	var tokens []string
	sink := func(token string) {
		mu.Lock()
		tokens = append(tokens, token)
		mu.Unlock()
	}

	e := newLoaded(WithShareSink(20*time.Millisecond, sink))
	defer e.Close()

	final := `{"edit":3}`
	for _, text := range []string{`{"edit":1}`, `{"edit":2}`, final} {
		if err := e.Edit(format.JSON, text); err != nil {
			t.Fatalf("Edit failed: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(tokens)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Share sink never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	state, ok := session.Decode(tokens[len(tokens)-1])
	if !ok {
		t.Fatal("Share sink produced an undecodable token")
	}
	if state.JSON != final {
		t.Errorf("Last shared state is %q, expected %q", state.JSON, final)
	}
}

// ============================================================
// Isolation
// ============================================================

func TestDocument_ReturnsClone(t *testing.T) {
	e := New()
	defer e.Close()

	if err := e.Edit(format.JSON, `{"a":[1]}`); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	doc := e.Document()
	doc.Get("a").Append(document.Number(2))

	if e.Document().Get("a").Len() != 1 {
		t.Error("Document snapshot shares storage with the engine")
	}
}
