// Package ingest turns each session's protocol update stream into activity
// records and, when enabled, relays inbound text to the conversational AI
// service.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/tgpulse/internal/metrics"
	"github.com/Veraticus/tgpulse/internal/relay"
	"github.com/Veraticus/tgpulse/internal/session"
	"github.com/Veraticus/tgpulse/internal/telegram"
)

// Pipeline attaches listeners to sessions and processes their updates.
type Pipeline struct {
	registry     *session.Registry
	relay        relay.Relay
	limiter      *relay.Limiter
	panicHandler PanicHandler
	logger       *slog.Logger
	now          func() time.Time
	relayEnabled bool
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithRelay enables relaying inbound text through r.
func WithRelay(r relay.Relay) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.relay = r
			p.relayEnabled = true
		}
	}
}

// WithReplyLimiter caps how often the relay answers per conversation.
func WithReplyLimiter(limiter *relay.Limiter) Option {
	return func(p *Pipeline) {
		p.limiter = limiter
	}
}

// WithClock sets the time source for activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithPanicHandler replaces the default panic handler.
func WithPanicHandler(handler PanicHandler) Option {
	return func(p *Pipeline) {
		p.panicHandler = handler
	}
}

// NewPipeline creates a pipeline writing into registry. Relaying is off
// unless WithRelay is given.
func NewPipeline(registry *session.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry: registry,
		relay:    relay.Disabled{},
		logger:   slog.Default(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.logger = p.logger.With(slog.String("component", "ingest"))
	if p.panicHandler == nil {
		p.panicHandler = NewLogPanicHandler(p.logger)
	}
	return p
}

// RelayEnabled reports whether inbound text is relayed.
func (p *Pipeline) RelayEnabled() bool {
	return p.relayEnabled
}

// Attach subscribes to the session's updates and starts its listener. The
// listener outlives ctx; it stops when the session is destroyed.
func (p *Pipeline) Attach(ctx context.Context, token string) error {
	s, ok := p.registry.Session(token)
	if !ok {
		return fmt.Errorf("attach listener: %w", session.ErrNotFound)
	}

	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	updates, err := s.Conn.Updates(listenCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to updates: %w", err)
	}

	l := newListener(p, s, cancel)
	go l.run(listenCtx, updates)

	if err := p.registry.Bind(token, l.Stop); err != nil {
		l.Stop()
		return err
	}

	p.logger.InfoContext(ctx, "listener attached",
		slog.String("phone", s.Phone),
		slog.Bool("relay", p.relayEnabled))
	return nil
}

// handle processes a single update for the session.
func (p *Pipeline) handle(ctx context.Context, s session.Session, u telegram.Update) {
	switch {
	case u.Message != nil:
		p.handleMessage(ctx, s, u.Message)
	case u.ChatAction != nil:
		p.handleChatAction(ctx, s, u.ChatAction)
	default:
		p.logger.DebugContext(ctx, "ignoring update without payload", slog.String("phone", s.Phone))
	}
}

func (p *Pipeline) handleMessage(ctx context.Context, s session.Session, m *telegram.MessageUpdate) {
	if m.Outgoing {
		return
	}

	chat := DisplayName(m.Chat)
	sender := DisplayName(m.Sender)
	rec := session.NewActivity(session.ActivityMessage, m.ID, chat, sender, session.MessageContent(m.Text), p.now())

	if !p.registry.AppendActivity(s.Token, rec) {
		return
	}
	metrics.EventsIngested.WithLabelValues(string(session.ActivityMessage)).Inc()

	p.logger.DebugContext(ctx, "message received",
		slog.String("chat", chat),
		slog.String("sender", sender),
		slog.Int("text_length", len(m.Text)))

	if p.relayEnabled && m.Text != "" {
		p.relayMessage(ctx, s, m.ChatID, m.Text)
	}
}

// relayMessage records the user turn, asks the relay for a reply and sends
// it back into the chat. The assistant turn is only recorded once the reply
// has been sent.
func (p *Pipeline) relayMessage(ctx context.Context, s session.Session, chatID int64, text string) {
	if !p.registry.AppendTurn(s.Token, chatID, session.RoleUser, text) {
		return
	}

	conversationID := relay.ConversationID(s.Token, chatID)
	if p.limiter != nil && !p.limiter.Allow(conversationID) {
		metrics.RelayRequests.WithLabelValues("rate_limited").Inc()
		p.logger.DebugContext(ctx, "relay reply rate limited",
			slog.String("phone", s.Phone),
			slog.Int64("chat_id", chatID))
		return
	}

	history := p.registry.History(s.Token, chatID)
	reply, ok := p.relay.Reply(ctx, history, conversationID)
	if !ok {
		metrics.RelayRequests.WithLabelValues("no_reply").Inc()
		return
	}

	// The session may have been logged out while the relay was thinking.
	if _, live := p.registry.Session(s.Token); ctx.Err() != nil || !live {
		metrics.RelayRequests.WithLabelValues("discarded").Inc()
		p.logger.DebugContext(ctx, "discarding relay reply for ended session",
			slog.String("phone", s.Phone),
			slog.Int64("chat_id", chatID))
		return
	}

	if err := s.Conn.SendMessage(ctx, chatID, reply); err != nil {
		metrics.RelayRequests.WithLabelValues("send_failed").Inc()
		p.logger.WarnContext(ctx, "failed to send relay reply",
			slog.String("phone", s.Phone),
			slog.Int64("chat_id", chatID),
			slog.Any("error", err))
		return
	}

	p.registry.AppendTurn(s.Token, chatID, session.RoleAssistant, reply)
	metrics.RelayRequests.WithLabelValues("reply").Inc()
}

func (p *Pipeline) handleChatAction(ctx context.Context, s session.Session, a *telegram.ChatActionUpdate) {
	var (
		kind session.ActivityType
		verb string
	)
	switch {
	case a.Action.IsJoin():
		kind, verb = session.ActivityMemberJoined, "joined"
	case a.Action.IsLeave():
		kind, verb = session.ActivityMemberLeft, "left"
	default:
		p.logger.DebugContext(ctx, "ignoring chat action", slog.String("action", string(a.Action)))
		return
	}

	actor := actorName(a.Actor)
	chat := groupName(a.Chat)
	content := fmt.Sprintf("👋 %s %s the group", actor, verb)

	if p.registry.AppendActivity(s.Token, session.NewActivity(kind, a.ID, chat, actor, content, p.now())) {
		metrics.EventsIngested.WithLabelValues(string(kind)).Inc()
		p.logger.DebugContext(ctx, "membership changed",
			slog.String("chat", chat),
			slog.String("actor", actor),
			slog.String("action", string(a.Action)))
	}
}
