package relay_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/tgpulse/internal/relay"
)

type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	clock := newClock()
	l := relay.NewLimiter(3, time.Second, relay.WithLimiterClock(clock.Now))

	for i := range 3 {
		assert.True(t, l.Allow("a"), "reply %d should be allowed", i)
	}
	assert.False(t, l.Allow("a"), "burst exhausted")

	clock.Advance(999 * time.Millisecond)
	assert.False(t, l.Allow("a"))

	clock.Advance(time.Millisecond)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	clock.Advance(time.Hour)
	for range 3 {
		assert.True(t, l.Allow("a"))
	}
	assert.False(t, l.Allow("a"), "refill is capped at the burst size")
}

func TestLimiter_ConversationsAreIndependent(t *testing.T) {
	clock := newClock()
	l := relay.NewLimiter(1, time.Minute, relay.WithLimiterClock(clock.Now))

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.Equal(t, 2, l.Len())
}

func TestLimiter_PrunesIdleConversations(t *testing.T) {
	clock := newClock()
	l := relay.NewLimiter(1, time.Second, relay.WithLimiterClock(clock.Now))

	l.Allow("old")
	clock.Advance(20 * time.Minute)
	l.Allow("recent")
	assert.Equal(t, 2, l.Len())

	clock.Advance(15 * time.Minute)
	l.Allow("new")
	assert.Equal(t, 2, l.Len(), "idle bucket dropped")
}

func TestLimiter_Defaults(t *testing.T) {
	l := relay.NewLimiter(0, 0)
	for range relay.DefaultReplyBurst {
		assert.True(t, l.Allow("a"))
	}
	assert.False(t, l.Allow("a"))
}

func TestLimiter_Concurrent(t *testing.T) {
	l := relay.NewLimiter(50, time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}
