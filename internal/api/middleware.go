package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgallion1/pagequiz/internal/session"
)

const sessionCookie = "pagequiz_session"

type sessionKey struct{}

// SessionMiddleware resolves the caller's session from its cookie, creating
// a new one when the cookie is missing or the session has expired.
func SessionMiddleware(store *session.Store, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess *session.Session
			if c, err := r.Cookie(sessionCookie); err == nil {
				sess = store.Get(c.Value)
			}
			if sess == nil {
				sess = store.Create()
				http.SetCookie(w, &http.Cookie{
					Name:     sessionCookie,
					Value:    sess.ID,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
				log.Info("session created", "session_id", sess.ID)
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
		})
	}
}

func sessionFrom(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(sessionKey{}).(*session.Session)
	return sess
}

// RequestLogger logs incoming requests.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
