package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/dgallion1/pagequiz/internal/model"
	"github.com/dgallion1/pagequiz/internal/render"
	"github.com/dgallion1/pagequiz/internal/session"
	"github.com/go-chi/chi/v5/middleware"
)

// Inline notices for the recoverable preconditions.
var notices = map[error]string{
	session.ErrNoDocument:  "Please load a PDF document first.",
	session.ErrNoAPIKey:    "Please enter API Key in sidebar.",
	session.ErrNoQuestion:  "Generate a question first.",
	session.ErrEmptyAnswer: "Please write an answer before checking.",
	model.ErrMissingAPIKey: "Please enter API Key in sidebar.",
}

func noticeFor(err error) (string, bool) {
	for target, msg := range notices {
		if errors.Is(err, target) {
			return msg, true
		}
	}
	return "", false
}

// handlePage only reports whether the default file exists; it is opened on
// the first action that needs it.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	v := sess.View()
	data := render.PageData{
		Flash:        sess.TakeFlash(),
		DefaultPDF:   s.ctrl.DefaultPDFPath(),
		DefaultFound: fileExists(s.ctrl.DefaultPDFPath()),
		MaxUploadMB:  s.cfg.MaxUploadBytes >> 20,
		HasAPIKey:    v.HasAPIKey,
		Phase:        string(v.Phase),
		Chapter:      v.State.Chapter,
		Archetype:    string(v.State.Archetype),
		Question:     v.State.Question,
		Answer:       v.State.Answer,
		Feedback:     v.State.Feedback,
	}
	if v.Document != nil {
		data.DocumentName = v.Document.Name
		data.DocumentPages = v.Document.Pages
	}
	if v.State.HasPage() {
		data.ImageURL = fmt.Sprintf("/page.png?p=%d", v.State.Page)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.Page(w, data); err != nil {
		s.log.Error("render page", "error", err, "session_id", sess.ID)
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if _, err := s.ctrl.EnsureDocument(sess); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Could not open document", err)
		return
	}
	s.afterAction(w, r, sess, s.ctrl.Generate(r.Context(), sess))
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	answer := r.FormValue("answer")
	s.afterAction(w, r, sess, s.ctrl.Submit(r.Context(), sess, answer))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Reset(sessionFrom(r))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleAPIKey(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	s.ctrl.SetAPIKey(sess, r.FormValue("api_key"))
	if !sess.View().HasAPIKey {
		sess.SetFlash(notices[session.ErrNoAPIKey])
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handlePageImage(w http.ResponseWriter, r *http.Request) {
	img := sessionFrom(r).PageImage()
	if img == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img)
}

// afterAction redirects back to the page, turning recoverable errors into
// a flash notice and anything else into the error page.
func (s *Server) afterAction(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	if err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if msg, ok := noticeFor(err); ok {
		sess.SetFlash(msg)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if errors.Is(err, session.ErrModel) {
		s.renderError(w, r, http.StatusBadGateway, "The model service request failed", err)
		return
	}
	s.renderError(w, r, http.StatusInternalServerError, "Could not prepare the page", err)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	s.log.Error(msg,
		"error", err,
		"status", status,
		"request_id", middleware.GetReqID(r.Context()),
	)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	render.ErrorPage(w, render.ErrorData{Message: msg, Detail: err.Error()})
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
