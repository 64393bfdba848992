package ingest

import (
	"context"
	"log/slog"

	"github.com/Veraticus/tgpulse/internal/session"
	"github.com/Veraticus/tgpulse/internal/telegram"
)

// Listener consumes one session's update stream. Updates are processed one
// at a time, so ordering within a chat is preserved.
type Listener struct {
	pipeline *Pipeline
	cancel   context.CancelFunc
	done     chan struct{}
	session  session.Session
}

func newListener(p *Pipeline, s session.Session, cancel context.CancelFunc) *Listener {
	return &Listener{
		pipeline: p,
		session:  s,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Stop cancels the listener and waits for it to exit. It is safe to call
// more than once.
func (l *Listener) Stop() {
	l.cancel()
	<-l.done
}

// Done is closed once the listener has exited.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

func (l *Listener) run(ctx context.Context, updates <-chan telegram.Update) {
	defer close(l.done)

	logger := l.pipeline.logger
	for {
		select {
		case <-ctx.Done():
			logger.DebugContext(ctx, "listener stopping", slog.String("phone", l.session.Phone))
			return

		case u, ok := <-updates:
			if !ok {
				logger.DebugContext(ctx, "update channel closed", slog.String("phone", l.session.Phone))
				return
			}
			l.process(ctx, u)
		}
	}
}

// process handles one update, containing any panic to that update.
func (l *Listener) process(ctx context.Context, u telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			handleRecoveredPanic(l.session.Phone, r, l.pipeline.panicHandler)
		}
	}()

	l.pipeline.handle(ctx, l.session, u)
}
