// Package playground exposes the synchronization engine over HTTP: the
// service surface of the interactive multi-format playground.
package playground

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/formfold/formfold/cost"
	"github.com/formfold/formfold/engine"
	"github.com/formfold/formfold/format"
)

// Server wires the HTTP API around a session store.
type Server struct {
	app   *fiber.App
	store *Store
	log   *zap.Logger

	// The tokenizer is expensive to construct (BPE data load), so one
	// instance is shared by every session and convert call, loaded on
	// first use. A failed load leaves counts permanently unavailable,
	// matching the engine's counter contract.
	counterOnce sync.Once
	counter     cost.Counter
	newCounter  func() (cost.Counter, error)
}

// NewServer builds the playground API. Each session gets its own engine;
// the alternate-format adapters and the tokenizer load asynchronously per
// the engine's contract.
func NewServer(log *zap.Logger) *Server {
	s := &Server{
		app:        fiber.New(fiber.Config{DisableStartupMessage: true}),
		log:        log,
		newCounter: func() (cost.Counter, error) { return cost.NewTiktokenCounter() },
	}
	s.store = NewStore(30*time.Minute, func() *engine.Engine {
		e := engine.New(engine.WithLogger(log))
		e.LoadAdapters(
			func() (format.Adapter, error) { return format.TOONAdapter{}, nil },
			func() (format.Adapter, error) { return format.YAMLAdapter{}, nil },
			func() (format.Adapter, error) { return format.CSVAdapter{}, nil },
		)
		e.LoadCounter(func() (cost.Counter, error) {
			if c := s.tokenCounter(); c != nil {
				return c, nil
			}
			return nil, fmt.Errorf("playground: tokenizer unavailable")
		})
		return e
	})

	api := s.app.Group("/api")
	api.Post("/sessions", s.createSession)
	api.Get("/sessions/:id", s.getSession)
	api.Post("/sessions/:id/edit", s.editSession)
	api.Post("/sessions/:id/focus", s.focusSession)
	api.Post("/sessions/:id/options", s.setOptions)
	api.Post("/convert", s.convert)
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// tokenCounter returns the shared tokenizer, loading it on first use.
// Returns nil while unavailable; callers omit token counts.
func (s *Server) tokenCounter() cost.Counter {
	s.counterOnce.Do(func() {
		c, err := s.newCounter()
		if err != nil {
			s.log.Warn("tokenizer load failed", zap.Error(err))
			return
		}
		s.counter = c
	})
	return s.counter
}

// Listen serves the API on addr.
func (s *Server) Listen(addr string) error {
	s.log.Info("playground listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// ============================================================
// Wire Types
// ============================================================

type savingsView struct {
	Diff        int    `json:"diff"`
	Percent     string `json:"percent"`
	Sign        string `json:"sign"`
	Improvement bool   `json:"improvement"`
}

type representationView struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Editable  bool         `json:"editable"`
	Available bool         `json:"available"`
	Tokens    *int         `json:"tokens"`
	Savings   *savingsView `json:"savings"`
}

type optionsView struct {
	Indent    int    `json:"indent"`
	Delimiter string `json:"delimiter"`
}

type sessionView struct {
	ID              string               `json:"id"`
	Active          string               `json:"active"`
	Error           string               `json:"error,omitempty"`
	Options         optionsView          `json:"options"`
	Share           string               `json:"share,omitempty"`
	Representations []representationView `json:"representations"`
}

func viewOf(id string, e *engine.Engine) sessionView {
	opts := e.Options()
	view := sessionView{
		ID:     id,
		Active: string(e.Active()),
		Error:  e.ParseError(),
		Options: optionsView{
			Indent:    opts.Indent,
			Delimiter: string(rune(opts.Delimiter)),
		},
	}
	if token, err := e.ShareToken(); err == nil {
		view.Share = token
	}
	for _, rep := range e.Snapshot() {
		rv := representationView{
			ID:        string(rep.ID),
			Text:      rep.Text,
			Editable:  rep.Editable,
			Available: rep.Available,
		}
		if rep.HasTokenCount {
			tokens := rep.TokenCount
			rv.Tokens = &tokens
		}
		if rep.Savings != nil {
			rv.Savings = &savingsView{
				Diff:        rep.Savings.Diff,
				Percent:     rep.Savings.Percent,
				Sign:        rep.Savings.Sign,
				Improvement: rep.Savings.Improvement,
			}
		}
		view.Representations = append(view.Representations, rv)
	}
	return view
}

// ============================================================
// Handlers
// ============================================================

// createSession starts a session, optionally restored from a share token
// in the "s" query parameter. A bad token silently falls back to the
// default session.
func (s *Server) createSession(c *fiber.Ctx) error {
	id, e := s.store.Create()
	if token := c.Query("s"); token != "" {
		e.Restore(token)
	}
	return c.Status(fiber.StatusCreated).JSON(viewOf(id, e))
}

func (s *Server) getSession(c *fiber.Ctx) error {
	id := c.Params("id")
	e, ok := s.store.Get(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
	}
	return c.JSON(viewOf(id, e))
}

func (s *Server) editSession(c *fiber.Ctx) error {
	id := c.Params("id")
	e, ok := s.store.Get(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
	}
	var req struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}
	repID := format.ID(req.ID)
	e.Focus(repID)
	// A canonical parse error is session state shown inline, not a
	// request failure; the snapshot carries it.
	if err := e.Edit(repID, req.Text); err != nil && e.ParseError() == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(viewOf(id, e))
}

func (s *Server) focusSession(c *fiber.Ctx) error {
	id := c.Params("id")
	e, ok := s.store.Get(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}
	e.Focus(format.ID(req.ID))
	return c.JSON(viewOf(id, e))
}

func (s *Server) setOptions(c *fiber.Ctx) error {
	id := c.Params("id")
	e, ok := s.store.Get(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
	}
	var req optionsView
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}
	opts := format.Options{Indent: req.Indent, Delimiter: format.DefaultDelimiter}
	if len(req.Delimiter) == 1 {
		opts.Delimiter = req.Delimiter[0]
	}
	e.SetOptions(opts)
	return c.JSON(viewOf(id, e))
}

// convert is the stateless one-shot endpoint: parse text in one notation,
// serialize it in another, count tokens when possible.
func (s *Server) convert(c *fiber.Ctx) error {
	var req struct {
		Text      string `json:"text"`
		From      string `json:"from"`
		To        string `json:"to"`
		Indent    *int   `json:"indent"`
		Delimiter string `json:"delimiter"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}

	from, ok := adapterFor(format.ID(req.From))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown source format"})
	}
	to, ok := adapterFor(format.ID(req.To))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown target format"})
	}
	parser, ok := from.(format.Parser)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "source format is not parseable"})
	}

	doc, err := parser.Parse(req.Text)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	opts := format.DefaultOptions()
	if req.Indent != nil {
		opts.Indent = *req.Indent
	}
	if len(req.Delimiter) == 1 {
		opts.Delimiter = req.Delimiter[0]
	}
	out := to.Serialize(doc, opts.Normalize())

	resp := fiber.Map{"text": out}
	if counter := s.tokenCounter(); counter != nil && out != "" {
		resp["tokens"] = counter.Count(out)
	}
	return c.JSON(resp)
}

func adapterFor(id format.ID) (format.Adapter, bool) {
	switch id {
	case format.JSON:
		return format.JSONAdapter{}, true
	case format.TOON:
		return format.TOONAdapter{}, true
	case format.YAML:
		return format.YAMLAdapter{}, true
	case format.CSV:
		return format.CSVAdapter{}, true
	default:
		return nil, false
	}
}
