package stubserver

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const contextSubjectKey contextKey = "subject"

func subjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(contextSubjectKey).(string)
	return subject, ok
}

// BearerAuth validates the Authorization header and puts the token subject
// into the request context. Anything short of a valid member token is a 401,
// which the client maps to its session-expired transition.
func (s *Server) BearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"message": "Missing bearer token.",
			})
			return
		}

		subject, role, err := s.parseToken(tokenString)
		if err != nil || role != "member" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"message": "Invalid or expired token.",
			})
			return
		}

		ctx := context.WithValue(r.Context(), contextSubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var allowedOrigins = map[string]struct{}{
	"http://localhost:5173": {},
	"http://localhost:5174": {},
}

// CORSMiddleware echoes allow-listed origins back so the browser portal can
// call the dev server directly.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if _, ok := allowedOrigins[origin]; ok {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods",
				"GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers",
				"Content-Type, Authorization, X-Request-ID")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
