package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/pagequiz/internal/config"
	"github.com/dgallion1/pagequiz/internal/model"
	"github.com/dgallion1/pagequiz/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP front end of the study tool.
type Server struct {
	router   chi.Router
	sessions *session.Store
	ctrl     *session.Controller
	stats    *model.LLMStats
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(sessions *session.Store, ctrl *session.Controller, stats *model.LLMStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		sessions: sessions,
		ctrl:     ctrl,
		stats:    stats,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/api/stats/llm", s.handleLLMStats)

	// Everything below acts on the caller's session.
	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(s.sessions, s.log))

		r.Get("/", s.handlePage)
		r.Get("/page.png", s.handlePageImage)
		r.Post("/document", s.handleUpload)
		r.Post("/settings/key", s.handleAPIKey)
		r.Post("/generate", s.handleGenerate)
		r.Post("/answer", s.handleAnswer)
		r.Post("/reset", s.handleReset)

		r.Get("/api/session", s.handleSessionSnapshot)
		r.Delete("/api/session", s.handleEndSession)
		r.Get("/api/document", s.handleDocument)
		r.Delete("/api/document", s.handleCloseDocument)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
