// Package auth drives the multi-step login flow: phone number, login code,
// and the optional second factor. It owns no state of its own; pending
// logins and sessions live in the session registry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/tgpulse/internal/apperr"
	"github.com/Veraticus/tgpulse/internal/metrics"
	"github.com/Veraticus/tgpulse/internal/session"
	"github.com/Veraticus/tgpulse/internal/telegram"
)

// Attacher starts event ingestion for a freshly created session.
type Attacher interface {
	Attach(ctx context.Context, token string) error
}

// SignInResult is the outcome of a successful login step.
type SignInResult struct {
	Token         string
	NeedsPassword bool
}

// Authenticator implements the login state machine.
type Authenticator struct {
	dialer   telegram.Dialer
	registry *session.Registry
	attacher Attacher
	logger   *slog.Logger
}

// Option configures the authenticator.
type Option func(*Authenticator)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// NewAuthenticator creates an authenticator dialing fresh connections with
// dialer and attaching ingestion to every new session.
func NewAuthenticator(dialer telegram.Dialer, registry *session.Registry, attacher Attacher, opts ...Option) *Authenticator {
	a := &Authenticator{
		dialer:   dialer,
		registry: registry,
		attacher: attacher,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.logger = a.logger.With(slog.String("component", "auth"))
	return a
}

// SendCode validates phone, opens a fresh connection and requests a login
// code. The connection is kept in a pending login until the flow completes.
func (a *Authenticator) SendCode(ctx context.Context, phone string) (string, error) {
	phone = telegram.NormalizePhoneNumber(phone)
	if err := telegram.ValidatePhoneNumber(phone); err != nil {
		record("send_code", "invalid_phone")
		return "", apperr.InvalidPhone(err)
	}

	conn, err := a.dialer.Dial(ctx)
	if err != nil {
		record("send_code", "upstream_error")
		return "", apperr.Upstream("failed to connect to Telegram", err)
	}

	sent, err := conn.SendCode(ctx, phone)
	if err != nil {
		a.disconnect(ctx, conn, phone)
		record("send_code", "upstream_error")
		return "", apperr.Upstream("failed to send code", err)
	}

	old, replaced := a.registry.PutPending(session.PendingAuth{
		Phone:    phone,
		Conn:     conn,
		CodeHash: sent.PhoneCodeHash,
	})
	if replaced {
		a.logger.DebugContext(ctx, "replacing pending login",
			slog.String("phone", phone),
			slog.String("previous_state", stateOf(*old).String()))
		a.disconnect(ctx, old.Conn, phone)
	}

	a.logger.InfoContext(ctx, "login code requested",
		slog.String("phone", phone),
		slog.String("code_type", sent.Type))
	record("send_code", "success")
	return sent.PhoneCodeHash, nil
}

// SignIn submits the login code of the pending login for phone. An empty
// codeHash falls back to the one returned by SendCode.
func (a *Authenticator) SignIn(ctx context.Context, phone, code, codeHash string) (SignInResult, error) {
	phone = telegram.NormalizePhoneNumber(phone)

	p, ok := a.registry.Pending(phone)
	if !ok {
		record("sign_in", "session_expired")
		return SignInResult{}, apperr.SessionExpired("no pending login, request a new code")
	}
	if codeHash == "" {
		codeHash = p.CodeHash
	}

	err := p.Conn.SignIn(ctx, phone, code, codeHash)
	switch {
	case err == nil:
		return a.finalize(ctx, "sign_in", p)

	case errors.Is(err, telegram.ErrPasswordNeeded):
		if err := a.transition(p, StatePasswordRequired); err != nil {
			return SignInResult{}, err
		}
		var updated bool
		a.registry.UpdatePending(phone, func(pending *session.PendingAuth) {
			if pending.Conn == p.Conn {
				pending.AwaitingPassword = true
				updated = true
			}
		})
		if !updated {
			record("sign_in", "session_expired")
			return SignInResult{}, apperr.SessionExpired("login expired, request a new code")
		}
		a.logger.InfoContext(ctx, "second factor required", slog.String("phone", phone))
		record("sign_in", "password_required")
		return SignInResult{NeedsPassword: true}, nil

	case errors.Is(err, telegram.ErrCodeInvalid):
		record("sign_in", "invalid_code")
		return SignInResult{}, apperr.InvalidCode("invalid verification code")

	case errors.Is(err, telegram.ErrCodeExpired):
		record("sign_in", "invalid_code")
		return SignInResult{}, apperr.InvalidCode("verification code expired, request a new code")

	default:
		record("sign_in", "upstream_error")
		return SignInResult{}, apperr.Upstream("sign in failed", err)
	}
}

// SignInWithPassword submits the second factor of the pending login for
// phone, which must have been asked for one by SignIn.
func (a *Authenticator) SignInWithPassword(ctx context.Context, phone, password string) (SignInResult, error) {
	phone = telegram.NormalizePhoneNumber(phone)

	p, ok := a.registry.Pending(phone)
	if !ok || stateOf(p) != StatePasswordRequired {
		record("sign_in_password", "session_expired")
		return SignInResult{}, apperr.SessionExpired("no login awaiting a password, sign in again")
	}

	if err := p.Conn.CheckPassword(ctx, password); err != nil {
		if errors.Is(err, telegram.ErrPasswordInvalid) {
			record("sign_in_password", "invalid_password")
			return SignInResult{}, apperr.InvalidPassword("invalid password")
		}
		record("sign_in_password", "upstream_error")
		return SignInResult{}, apperr.Upstream("password check failed", err)
	}

	return a.finalize(ctx, "sign_in_password", p)
}

// Logout destroys the session for token.
func (a *Authenticator) Logout(ctx context.Context, token string) {
	a.registry.DestroySession(ctx, token)
	metrics.ActiveSessions.Set(float64(a.registry.Len()))
	a.logger.InfoContext(ctx, "session logged out")
}

// finalize turns an authorized pending login into a session and starts its
// ingestion.
func (a *Authenticator) finalize(ctx context.Context, step string, p session.PendingAuth) (SignInResult, error) {
	if err := a.transition(p, StateAuthenticated); err != nil {
		return SignInResult{}, err
	}

	blob, err := p.Conn.ExportSession(ctx)
	if err != nil {
		record(step, "upstream_error")
		return SignInResult{}, apperr.Upstream("failed to export session", err)
	}

	token, err := a.registry.CreateSession(p.Phone, p.Conn, blob)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			record(step, "session_expired")
			return SignInResult{}, apperr.SessionExpired("login expired, request a new code")
		}
		record(step, "internal_error")
		return SignInResult{}, apperr.Wrap(apperr.KindInternal, "failed to create session", err)
	}

	if err := a.attacher.Attach(ctx, token); err != nil {
		a.registry.DestroySession(ctx, token)
		record(step, "upstream_error")
		return SignInResult{}, apperr.Upstream("failed to start listening for updates", err)
	}

	metrics.ActiveSessions.Set(float64(a.registry.Len()))
	a.logger.InfoContext(ctx, "session created", slog.String("phone", p.Phone))
	record(step, "success")
	return SignInResult{Token: token}, nil
}

func (a *Authenticator) transition(p session.PendingAuth, to State) error {
	from := stateOf(p)
	if !IsValidTransition(from, to) {
		return apperr.Wrap(apperr.KindInternal, "invalid login transition",
			fmt.Errorf("%s -> %s", from, to))
	}
	return nil
}

func (a *Authenticator) disconnect(ctx context.Context, conn telegram.Conn, phone string) {
	if err := conn.Disconnect(ctx); err != nil {
		a.logger.DebugContext(ctx, "disconnect failed",
			slog.String("phone", phone),
			slog.Any("error", err))
	}
}

func record(step, outcome string) {
	metrics.AuthAttempts.WithLabelValues(step, outcome).Inc()
}
