// Package session owns every authenticated account connection together with
// its activity log and per-chat conversation history, plus the pending logins
// that have not produced a session yet.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/tgpulse/internal/telegram"
)

// ErrNotFound is returned when no matching entry exists.
var ErrNotFound = errors.New("session: not found")

// maxTokenAttempts bounds regeneration on the (practically impossible)
// collision with a live token.
const maxTokenAttempts = 3

// Session is an authenticated account connection.
type Session struct {
	CreatedAt time.Time
	Conn      telegram.Conn
	Token     string
	Phone     string
	Blob      string
}

// PendingAuth is a login in progress, keyed by phone number.
type PendingAuth struct {
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Conn             telegram.Conn
	Phone            string
	CodeHash         string
	AwaitingPassword bool
}

// entry holds a session and the state it owns. mu is the per-token lock.
type entry struct {
	activity *ActivityLog
	history  map[int64]*History
	stop     func()
	session  Session
	mu       sync.Mutex
}

// Registry maps tokens to sessions and phones to pending logins. It is safe
// for concurrent use.
type Registry struct {
	sessions map[string]*entry
	pending  map[string]*PendingAuth
	logger   *slog.Logger
	now      func() time.Time
	newToken func() (string, error)
	mu       sync.RWMutex
}

// Option configures the registry.
type Option func(*Registry)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithTokenGenerator replaces the token source.
func WithTokenGenerator(gen func() (string, error)) Option {
	return func(r *Registry) {
		r.newToken = gen
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*entry),
		pending:  make(map[string]*PendingAuth),
		logger:   slog.Default(),
		now:      time.Now,
		newToken: NewToken,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.logger = r.logger.With(slog.String("component", "session.registry"))
	return r
}

// PutPending stores p under its phone, replacing any previous entry. The
// replaced entry is returned; disconnecting it is the caller's job.
func (r *Registry) PutPending(p PendingAuth) (*PendingAuth, bool) {
	now := r.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()

	old, replaced := r.pending[p.Phone]
	r.pending[p.Phone] = &p
	return old, replaced
}

// Pending returns a copy of the pending login for phone without removing it.
func (r *Registry) Pending(phone string) (PendingAuth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pending[phone]
	if !ok {
		return PendingAuth{}, false
	}
	return *p, true
}

// UpdatePending applies fn to the pending login for phone under the registry
// lock. It reports false when there is none.
func (r *Registry) UpdatePending(phone string, fn func(p *PendingAuth)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[phone]
	if !ok {
		return false
	}
	fn(p)
	p.UpdatedAt = r.now()
	return true
}

// CreateSession turns the pending login for phone into a session and returns
// its token. conn must be the pending login's connection; ErrNotFound is
// returned when the pending entry is gone or was replaced meanwhile.
func (r *Registry) CreateSession(phone string, conn telegram.Conn, blob string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[phone]
	if !ok || p.Conn != conn {
		return "", fmt.Errorf("no pending login for %s: %w", phone, ErrNotFound)
	}

	token, err := r.uniqueToken()
	if err != nil {
		return "", err
	}

	r.sessions[token] = &entry{
		session: Session{
			Token:     token,
			Phone:     phone,
			Conn:      conn,
			Blob:      blob,
			CreatedAt: r.now(),
		},
		activity: NewActivityLog(MaxActivities),
		history:  make(map[int64]*History),
	}
	delete(r.pending, phone)

	return token, nil
}

// uniqueToken must be called with r.mu held.
func (r *Registry) uniqueToken() (string, error) {
	for range maxTokenAttempts {
		token, err := r.newToken()
		if err != nil {
			return "", err
		}
		if _, taken := r.sessions[token]; !taken && token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique session token")
}

// Session returns the session for token.
func (r *Registry) Session(token string) (Session, bool) {
	e := r.lookup(token)
	if e == nil {
		return Session{}, false
	}
	return e.session, true
}

// Bind attaches the stop function of the session's event listener. Stop is
// run by DestroySession. ErrNotFound means the session is already gone and
// the caller must stop the listener itself.
func (r *Registry) Bind(token string, stop func()) error {
	e := r.lookup(token)
	if e == nil {
		return fmt.Errorf("bind listener: %w", ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stop = stop
	return nil
}

// DestroySession removes the session and everything it owns, stops its
// listener and disconnects its connection. Destroying an unknown token is a
// no-op.
func (r *Registry) DestroySession(ctx context.Context, token string) {
	r.mu.Lock()
	e, ok := r.sessions[token]
	delete(r.sessions, token)
	r.mu.Unlock()

	if !ok {
		return
	}

	e.mu.Lock()
	stop := e.stop
	e.stop = nil
	e.mu.Unlock()

	if stop != nil {
		stop()
	}

	if err := e.session.Conn.Disconnect(ctx); err != nil {
		r.logger.DebugContext(ctx, "disconnect failed during session teardown",
			slog.String("phone", e.session.Phone),
			slog.Any("error", err))
	}
}

// AppendActivity inserts rec at the front of the session's log. It reports
// false, and does nothing, when the session no longer exists.
func (r *Registry) AppendActivity(token string, rec Activity) bool {
	e := r.lookup(token)
	if e == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.activity.Add(rec)
	return true
}

// Activities returns the session's log newest first; empty for an unknown
// token.
func (r *Registry) Activities(token string) []Activity {
	e := r.lookup(token)
	if e == nil {
		return []Activity{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activity.List()
}

// AppendTurn appends a turn to the (token, chatID) history, creating it on
// first use. It reports false when the session no longer exists.
func (r *Registry) AppendTurn(token string, chatID int64, role Role, content string) bool {
	e := r.lookup(token)
	if e == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.history[chatID]
	if !ok {
		h = NewHistory(MaxTurns)
		e.history[chatID] = h
	}
	h.Append(Turn{Role: role, Content: content})
	return true
}

// History returns the (token, chatID) turns oldest first; empty if absent.
func (r *Registry) History(token string, chatID int64) []Turn {
	e := r.lookup(token)
	if e == nil {
		return []Turn{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.history[chatID]
	if !ok {
		return []Turn{}
	}
	return h.Turns()
}

// ExpirePending removes and returns pending logins not updated since before.
func (r *Registry) ExpirePending(before time.Time) []PendingAuth {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []PendingAuth
	for phone, p := range r.pending {
		if p.UpdatedAt.Before(before) {
			expired = append(expired, *p)
			delete(r.pending, phone)
		}
	}
	return expired
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// PendingLen returns the number of pending logins.
func (r *Registry) PendingLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending)
}

// Shutdown destroys every session and disconnects every pending login.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	tokens := make([]string, 0, len(r.sessions))
	for token := range r.sessions {
		tokens = append(tokens, token)
	}
	pending := make([]*PendingAuth, 0, len(r.pending))
	for phone, p := range r.pending {
		pending = append(pending, p)
		delete(r.pending, phone)
	}
	r.mu.Unlock()

	for _, token := range tokens {
		r.DestroySession(ctx, token)
	}
	for _, p := range pending {
		if err := p.Conn.Disconnect(ctx); err != nil {
			r.logger.DebugContext(ctx, "disconnect failed for pending login",
				slog.String("phone", p.Phone),
				slog.Any("error", err))
		}
	}

	r.logger.InfoContext(ctx, "registry shut down",
		slog.Int("sessions", len(tokens)),
		slog.Int("pending", len(pending)))
}

func (r *Registry) lookup(token string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[token]
}
