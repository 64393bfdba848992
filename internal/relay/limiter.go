package relay

import (
	"sync"
	"time"
)

const (
	// DefaultReplyBurst is how many replies a conversation may get back to back.
	DefaultReplyBurst = 5

	// DefaultReplyRefill is how often a conversation regains one reply.
	DefaultReplyRefill = 10 * time.Second

	// bucketIdleAfter is how long an untouched bucket is kept.
	bucketIdleAfter = 30 * time.Minute
)

// tokenBucket must only be used with the owning Limiter's lock held.
type tokenBucket struct {
	lastRefill time.Time
	lastUsed   time.Time
	tokens     int
}

// Limiter caps how often the relay answers in a single conversation using
// one token bucket per conversation id. It is safe for concurrent use.
type Limiter struct {
	buckets   map[string]*tokenBucket
	now       func() time.Time
	lastPrune time.Time
	refill    time.Duration
	capacity  int
	mu        sync.Mutex
}

// LimiterOption configures the limiter.
type LimiterOption func(*Limiter)

// WithLimiterClock sets the time source.
func WithLimiterClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter allows burst replies at once and one more every refill.
func NewLimiter(burst int, refill time.Duration, opts ...LimiterOption) *Limiter {
	if burst <= 0 {
		burst = DefaultReplyBurst
	}
	if refill <= 0 {
		refill = DefaultReplyRefill
	}

	l := &Limiter{
		buckets:  make(map[string]*tokenBucket),
		now:      time.Now,
		refill:   refill,
		capacity: burst,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastPrune = l.now()
	return l
}

// Allow consumes one reply for the conversation and reports whether there
// was one left.
func (l *Limiter) Allow(conversationID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	b, ok := l.buckets[conversationID]
	if !ok {
		b = &tokenBucket{tokens: l.capacity, lastRefill: now}
		l.buckets[conversationID] = b
	}

	if periods := int(now.Sub(b.lastRefill) / l.refill); periods > 0 {
		b.tokens = min(l.capacity, b.tokens+periods)
		b.lastRefill = b.lastRefill.Add(time.Duration(periods) * l.refill)
	}
	b.lastUsed = now

	if b.tokens == 0 {
		return false
	}
	b.tokens--
	return true
}

// Len returns the number of tracked conversations.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// prune drops idle buckets at most once per bucketIdleAfter.
func (l *Limiter) prune(now time.Time) {
	if now.Sub(l.lastPrune) < bucketIdleAfter {
		return
	}
	l.lastPrune = now

	cutoff := now.Add(-bucketIdleAfter)
	for id, b := range l.buckets {
		if b.lastUsed.Before(cutoff) {
			delete(l.buckets, id)
		}
	}
}
