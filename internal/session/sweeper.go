package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultPendingTTL is how long an unfinished login keeps its connection.
	DefaultPendingTTL = 10 * time.Minute

	// DefaultSweepInterval is how often abandoned logins are looked for.
	DefaultSweepInterval = 1 * time.Minute
)

// Sweeper periodically disconnects and drops abandoned pending logins.
type Sweeper struct {
	registry *Registry
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	onExpire func(n int)
	ttl      time.Duration
	interval time.Duration
	mu       sync.Mutex
	running  bool
}

// SweeperOption configures the sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval overrides DefaultSweepInterval.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithExpireHook is called with the number of logins dropped by each sweep
// that dropped any.
func WithExpireHook(fn func(n int)) SweeperOption {
	return func(s *Sweeper) {
		s.onExpire = fn
	}
}

// WithSweeperLogger sets a custom logger.
func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// NewSweeper creates a sweeper dropping pending logins idle for longer
// than ttl.
func NewSweeper(registry *Registry, ttl time.Duration, opts ...SweeperOption) *Sweeper {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}

	s := &Sweeper{
		registry: registry,
		ttl:      ttl,
		interval: DefaultSweepInterval,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With(slog.String("component", "session.sweeper"))
	return s
}

// Start begins the periodic sweep.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(sweepCtx, s.done)
}

// Stop halts the sweep and waits for it to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// IsRunning returns whether the sweep loop is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.DebugContext(ctx, "sweeper stopping")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs a single pass and returns the number of dropped logins.
func (s *Sweeper) Sweep(ctx context.Context) int {
	expired := s.registry.ExpirePending(s.registry.now().Add(-s.ttl))

	for _, p := range expired {
		if err := p.Conn.Disconnect(ctx); err != nil {
			s.logger.DebugContext(ctx, "disconnect failed for expired login",
				slog.String("phone", p.Phone),
				slog.Any("error", err))
		}
	}

	if n := len(expired); n > 0 {
		s.logger.InfoContext(ctx, "dropped abandoned logins", slog.Int("count", n))
		if s.onExpire != nil {
			s.onExpire(n)
		}
	}

	return len(expired)
}
