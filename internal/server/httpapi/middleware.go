package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/csrf"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs one line per request. Tokens, passwords and cookies are
// never logged.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		}
		if id := identityFrom(r.Context()); id != nil {
			args = append(args, "login_name", id.LoginName)
		}
		h.logger.Info(r.Context(), "request", args...)
	})
}

// loadSession resolves the session cookie into a server-side session and
// stores it in the request context. Invalid, expired and unknown cookies
// leave the request anonymous. A live session gets its cookie refreshed.
// Request bodies are capped at maxBodyBytes for every later reader.
func (h *Handler) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		if c, err := r.Cookie(common.SessionCookieName); err == nil {
			if sid, err := h.tokens.GetSessionIDFromToken(c.Value); err == nil {
				if s, err := h.sessions.Get(sid); err == nil {
					h.setSessionCookie(w, s.ID)
					r = r.WithContext(withSession(r.Context(), s))
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// requireCSRF rejects state-changing requests whose anti-forgery token does
// not match the session's token. Paths in exempt are skipped.
func (h *Handler) requireCSRF(exempt map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) || exempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if err := h.csrf.Verify(sessionIDFrom(r.Context()), csrf.Presented(r)); err != nil {
				writeError(r.Context(), w, h.logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
