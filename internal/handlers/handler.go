// Package handlers implements the HTTP endpoints of the API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Veraticus/tgpulse/internal/apperr"
	"github.com/Veraticus/tgpulse/internal/auth"
	"github.com/Veraticus/tgpulse/internal/session"
	"github.com/Veraticus/tgpulse/internal/stats"
)

// Version is reported by the root endpoint.
var Version = "dev"

// Authenticator is the login flow used by the auth endpoints.
type Authenticator interface {
	SendCode(ctx context.Context, phone string) (string, error)
	SignIn(ctx context.Context, phone, code, codeHash string) (auth.SignInResult, error)
	SignInWithPassword(ctx context.Context, phone, password string) (auth.SignInResult, error)
	Logout(ctx context.Context, token string)
}

// Queries answers the read-only session endpoints.
type Queries interface {
	Stats(ctx context.Context, token string) (stats.Stats, error)
	Activities(token string) []session.Activity
	Chart(token string) []stats.ChartPoint
	Status(token string) (stats.Status, error)
}

// Counter reports registry sizes for the health endpoint.
type Counter interface {
	Len() int
	PendingLen() int
}

// Config holds the flags reported by the health endpoint.
type Config struct {
	APIConfigured bool
	RelayEnabled  bool
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	auth    Authenticator
	queries Queries
	counter Counter
	logger  zerolog.Logger
	config  Config
}

// NewHandler creates a new Handler.
func NewHandler(authn Authenticator, queries Queries, counter Counter, config Config, logger zerolog.Logger) *Handler {
	return &Handler{
		auth:    authn,
		queries: queries,
		counter: counter,
		config:  config,
		logger:  logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn().Err(err).Msg("failed to write response")
	}
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// Fail maps err onto a status code: client-input kinds are 400, missing
// credentials and unknown sessions are 401, anything else is 500 with the
// detail kept out of the response.
func (h *Handler) Fail(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)

	switch {
	case kind == apperr.KindUnauthorized, kind == apperr.KindSessionNotFound:
		h.Error(w, http.StatusUnauthorized, err.Error())
	case kind.IsClientError():
		h.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("request failed")
		h.Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// decode reads a JSON body into v. An empty body is an error.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("invalid JSON body")
	}
	return nil
}
