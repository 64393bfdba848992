// Package middleware holds the HTTP middleware of the API.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	// SessionTokenHeader carries the session token as an alternative to the
	// Authorization header.
	SessionTokenHeader = "X-Session-Token"

	bearerPrefix = "Bearer "
)

type contextKey string

const tokenKey contextKey = "session_token"

// RequireSession rejects requests without a session token with 401 and
// stores the token in the request context. Whether the token names a live
// session is left to the handler.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized: no session token provided")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenKey, token)))
	})
}

// ExtractToken returns the token from X-Session-Token, else from a Bearer
// Authorization header, else "".
func ExtractToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(SessionTokenHeader)); token != "" {
		return token
	}

	authz := r.Header.Get("Authorization")
	if len(authz) > len(bearerPrefix) && strings.EqualFold(authz[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(authz[len(bearerPrefix):])
	}
	return ""
}

// TokenFromContext returns the token stored by RequireSession.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
