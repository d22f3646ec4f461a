package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/pagequiz/internal/chapter"
)

// handleDocument describes the session's document and its chapter ranges.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if _, err := s.ctrl.EnsureDocument(sess); err != nil {
		jsonError(w, "failed to open document: "+err.Error(), http.StatusBadRequest)
		return
	}
	ranges, ok := sess.Chapters()
	if !ok {
		jsonError(w, "no document loaded", http.StatusNotFound)
		return
	}
	if ranges == nil {
		ranges = []chapter.Range{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"document": sess.View().Document,
		"chapters": ranges,
	})
}

// handleCloseDocument releases the session's document and quiz state.
func (s *Server) handleCloseDocument(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Reset(sessionFrom(r))
	w.WriteHeader(http.StatusNoContent)
}
