package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"provider": s.cfg.ModelProvider,
		"model":    s.cfg.ModelName,
		"stats":    s.stats.Snapshot(),
	})
}

// handleEndSession drops the caller's session, releasing its document.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	s.sessions.Delete(sess.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.log.Info("session ended", "session_id", sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sessionFrom(r).Snapshot())
}
