package wickeditor

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"wick_editor/logging"
	"wick_editor/token"
)

type contextKey int

const subjectCtxKey contextKey = 0

// ResolveUser returns the authenticated token subject.
// Falls back to "local" when auth is disabled.
func ResolveUser(r *http.Request) string {
	if sub, ok := r.Context().Value(subjectCtxKey).(string); ok {
		return sub
	}
	return "local"
}

// authMiddleware validates Bearer tokens signed with secret.
// If secret is empty, auth is disabled and all requests pass through as "local".
func authMiddleware(secret []byte, next http.Handler) http.Handler {
	if len(secret) == 0 {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), subjectCtxKey, "local")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := token.FromHeader(r.Header.Get("Authorization"))
		if !ok {
			// EventSource cannot set headers.
			tok = r.URL.Query().Get("access_token")
		}
		if tok == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}

		sub, err := token.Validate(secret, tok)
		if err != nil {
			logging.Debug("rejected token", zap.String("path", r.URL.Path), zap.Error(err))
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), subjectCtxKey, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
