package session

import (
	"sync"
	"time"

	"github.com/dgallion1/pagequiz/internal/chapter"
	"github.com/dgallion1/pagequiz/internal/document"
	"github.com/dgallion1/pagequiz/internal/model"
	"github.com/dgallion1/pagequiz/internal/prompt"
)

// Session is one learner's context: document handle, credential, cached
// model client and quiz state. mu serialises every action on it.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu     sync.Mutex
	doc    *document.Document
	apiKey string
	client model.Client
	state  State
	flash  string

	touched time.Time // guarded by Store.mu
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now, touched: now}
}

// View is a read-only copy of what the page needs to render.
type View struct {
	ID        string
	State     State
	Phase     Phase
	HasAPIKey bool
	Document  *DocumentInfo
}

// DocumentInfo describes the loaded document.
type DocumentInfo struct {
	Name           string `json:"name"`
	Pages          int    `json:"pages"`
	Hash           string `json:"hash"`
	OutlineEntries int    `json:"outline_entries"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.Image != nil {
		st.Image = append([]byte(nil), st.Image...)
	}
	return View{
		ID:        s.ID,
		State:     st,
		Phase:     st.Phase(),
		HasAPIKey: s.apiKey != "",
		Document:  s.docInfoLocked(),
	}
}

// PageImage returns the PNG of the drawn page, or nil.
func (s *Session) PageImage() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Image
}

// SetFlash stores a one-shot notice shown on the next page view.
func (s *Session) SetFlash(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = msg
}

// TakeFlash returns and clears the pending notice.
func (s *Session) TakeFlash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.flash
	s.flash = ""
	return msg
}

// Snapshot is a JSON-safe view of the session. It never carries the
// credential or the image bytes.
type Snapshot struct {
	ID         string           `json:"session_id"`
	Phase      Phase            `json:"phase"`
	Page       *int             `json:"page"`
	Chapter    string           `json:"chapter,omitempty"`
	Archetype  prompt.Archetype `json:"question_type,omitempty"`
	Question   string           `json:"question,omitempty"`
	Answer     string           `json:"answer,omitempty"`
	Feedback   string           `json:"feedback,omitempty"`
	HasAPIKey  bool             `json:"has_api_key"`
	ImageBytes int              `json:"image_bytes"`
	Document   *DocumentInfo    `json:"document"`
	CreatedAt  time.Time        `json:"created_at"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:         s.ID,
		Phase:      s.state.Phase(),
		Chapter:    s.state.Chapter,
		Archetype:  s.state.Archetype,
		Question:   s.state.Question,
		Answer:     s.state.Answer,
		Feedback:   s.state.Feedback,
		HasAPIKey:  s.apiKey != "",
		ImageBytes: len(s.state.Image),
		Document:   s.docInfoLocked(),
		CreatedAt:  s.CreatedAt,
	}
	if s.state.HasPage() {
		p := s.state.Page
		snap.Page = &p
	}
	return snap
}

func (s *Session) docInfoLocked() *DocumentInfo {
	if s.doc == nil {
		return nil
	}
	return &DocumentInfo{
		Name:           s.doc.Name(),
		Pages:          s.doc.PageCount(),
		Hash:           s.doc.ContentHash(),
		OutlineEntries: len(s.doc.Outline()),
	}
}

// Chapters returns the chapter ranges the selector draws from, or false
// when no document is loaded.
func (s *Session) Chapters() ([]chapter.Range, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, false
	}
	return chapter.Ranges(s.doc.Outline(), s.doc.PageCount()), true
}

// close releases the document. Called on eviction.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil {
		s.doc.Close()
		s.doc = nil
	}
	if s.client != nil {
		model.Release(s.client)
		s.client = nil
	}
}
