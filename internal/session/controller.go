package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"github.com/dgallion1/pagequiz/internal/chapter"
	"github.com/dgallion1/pagequiz/internal/document"
	"github.com/dgallion1/pagequiz/internal/model"
	"github.com/dgallion1/pagequiz/internal/prompt"
)

// Preconditions the UI recovers from with an inline notice.
var (
	ErrNoDocument  = errors.New("no document loaded")
	ErrNoAPIKey    = errors.New("no API key entered")
	ErrNoQuestion  = errors.New("no question to answer")
	ErrEmptyAnswer = errors.New("answer is empty")
)

// ErrModel marks failures of the model service itself (transport, auth,
// quota, empty reply).
var ErrModel = errors.New("model request failed")

// ClientFactory builds a model client from the user's key.
type ClientFactory func(ctx context.Context, apiKey string) (model.Client, error)

// Options configures a Controller.
type Options struct {
	Builder         prompt.Builder
	Scale           float64
	IncludePageText bool
	DefaultPDFPath  string
	NewClient       ClientFactory
	Rand            *rand.Rand
	Log             *slog.Logger
}

// Controller runs the generate/answer/reset cycle against a Session.
type Controller struct {
	builder     prompt.Builder
	scale       float64
	includeText bool
	defaultPDF  string
	newClient   ClientFactory
	log         *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewController(opts Options) *Controller {
	if opts.Scale <= 0 {
		opts.Scale = document.DefaultScale
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Controller{
		builder:     opts.Builder,
		scale:       opts.Scale,
		includeText: opts.IncludePageText,
		defaultPDF:  opts.DefaultPDFPath,
		newClient:   opts.NewClient,
		log:         opts.Log,
		rng:         opts.Rand,
	}
}

// DefaultPDFPath is the local document opened for sessions without one.
func (c *Controller) DefaultPDFPath() string {
	return c.defaultPDF
}

// OpenDocument opens an uploaded PDF. The raw bytes are kept only when page
// text goes into the prompt.
func (c *Controller) OpenDocument(name string, data []byte) (*document.Document, error) {
	return document.OpenBytes(name, data, c.docOptions()...)
}

func (c *Controller) docOptions() []document.Option {
	if c.includeText {
		return []document.Option{document.WithTextLayer()}
	}
	return nil
}

// EnsureDocument opens the default local PDF when the session has no
// document. It reports whether the session now has one. A missing default
// file is not an error. Callers invoke it only from actions that need the
// document, so plain page views never hold one open.
func (c *Controller) EnsureDocument(s *Session) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil {
		return true, nil
	}
	if c.defaultPDF == "" {
		return false, nil
	}
	if _, err := os.Stat(c.defaultPDF); err != nil {
		return false, nil
	}
	doc, err := document.Open(c.defaultPDF, c.docOptions()...)
	if err != nil {
		return false, err
	}
	s.doc = doc
	c.log.Info("default document opened",
		"session_id", s.ID, "doc_hash", doc.ContentHash(), "pages", doc.PageCount())
	return true, nil
}

// LoadDocument replaces the session's document, closing the previous one,
// and clears the quiz state.
func (c *Controller) LoadDocument(s *Session, doc *document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil && s.doc != doc {
		s.doc.Close()
	}
	s.doc = doc
	s.state = State{}
	c.log.Info("document loaded",
		"session_id", s.ID, "doc_hash", doc.ContentHash(), "name", doc.Name(), "pages", doc.PageCount())
}

// SetAPIKey stores the credential in memory and drops any cached client.
// Changing the key clears the quiz state.
func (c *Controller) SetAPIKey(s *Session, key string) {
	key = strings.TrimSpace(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == s.apiKey {
		return
	}
	s.apiKey = key
	if s.client != nil {
		model.Release(s.client)
		s.client = nil
	}
	s.state = State{}
}

// Generate draws a page, rasterizes it and asks the model for a question.
// The whole state is cleared before the draw, so a failed render leaves
// nothing and a failed model call leaves the page shown with no question.
func (c *Controller) Generate(ctx context.Context, s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return ErrNoDocument
	}
	if s.apiKey == "" {
		return ErrNoAPIKey
	}
	client, err := c.clientLocked(ctx, s)
	if err != nil {
		return err
	}

	s.state = State{}

	sel := c.draw(s.doc)
	img, err := document.Render(s.doc, sel.Page, c.scale)
	if err != nil {
		return fmt.Errorf("render page %d: %w", sel.Page, err)
	}
	png, err := document.EncodePNG(img)
	if err != nil {
		return fmt.Errorf("encode page %d: %w", sel.Page, err)
	}
	s.state.Page = sel.Page
	s.state.Chapter = sel.Title
	s.state.Image = png

	archetype := c.archetype()
	p := c.builder.Question(sel.Title, archetype)
	if c.includeText {
		p = c.withPageText(s, sel.Page, p)
	}

	log := c.log.With("session_id", s.ID, "doc_hash", s.doc.ContentHash())
	log.Info("generating question", "page", sel.Page, "chapter", sel.Title, "question_type", archetype)

	text, err := client.Generate(model.WithPurpose(ctx, "question"), p, model.PNG(png))
	if err != nil {
		return fmt.Errorf("generate question: %w: %w", ErrModel, err)
	}
	s.state.Question = text
	s.state.Archetype = archetype
	return nil
}

// Submit grades answer against the stored page image. A blank answer is
// rejected before any model call and leaves the state untouched.
func (c *Controller) Submit(ctx context.Context, s *Session, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Question == "" {
		return ErrNoQuestion
	}
	if strings.TrimSpace(answer) == "" {
		return ErrEmptyAnswer
	}
	if s.apiKey == "" {
		return ErrNoAPIKey
	}
	client, err := c.clientLocked(ctx, s)
	if err != nil {
		return err
	}

	s.state.Answer = answer
	p := c.builder.Grading(s.state.Question, answer, s.state.Archetype)

	c.log.Info("grading answer", "session_id", s.ID, "page", s.state.Page, "question_type", s.state.Archetype)

	text, err := client.Generate(model.WithPurpose(ctx, "grading"), p, model.PNG(s.state.Image))
	if err != nil {
		return fmt.Errorf("grade answer: %w: %w", ErrModel, err)
	}
	s.state.Feedback = text
	return nil
}

// Reset clears every quiz field and releases the document handle. The
// credential is kept.
func (c *Controller) Reset(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil {
		s.doc.Close()
		s.doc = nil
	}
	s.state = State{}
	s.flash = ""
	c.log.Info("session reset", "session_id", s.ID)
}

func (c *Controller) clientLocked(ctx context.Context, s *Session) (model.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	if c.newClient == nil {
		return nil, errors.New("no model client factory configured")
	}
	client, err := c.newClient(ctx, s.apiKey)
	if err != nil {
		return nil, fmt.Errorf("create model client: %w: %w", ErrModel, err)
	}
	s.client = client
	return client, nil
}

func (c *Controller) withPageText(s *Session, page int, p string) string {
	text, err := s.doc.PageText(page)
	if err != nil {
		c.log.Warn("page text unavailable", "session_id", s.ID, "page", page, "error", err)
		return p
	}
	return prompt.WithPageText(p, text)
}

func (c *Controller) draw(doc chapter.Source) chapter.Selection {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return chapter.Select(doc, c.rng)
}

func (c *Controller) archetype() prompt.Archetype {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return prompt.RandomArchetype(c.rng)
}
