// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/tgpulse/internal/relay"
	"github.com/Veraticus/tgpulse/internal/session"
	"github.com/Veraticus/tgpulse/internal/telegram"
)

// Compile-time checks to ensure mocks implement their interfaces.
var (
	_ telegram.Conn   = (*MockConn)(nil)
	_ telegram.Dialer = (*MockDialer)(nil)
	_ relay.Relay     = (*MockRelay)(nil)
)

// RelayCall records a Reply invocation.
type RelayCall struct {
	History        []session.Turn
	ConversationID string
}

// ScriptedReply is one queued relay answer.
type ScriptedReply struct {
	// Optional callback run before returning, for side effects in tests
	BeforeReturn func(history []session.Turn)

	Text string

	// Delay before returning (simulates service latency)
	Delay time.Duration

	OK bool
}

// MockRelay is a test implementation of relay.Relay. Scripted replies are
// consumed in order; once exhausted the fallback answers.
type MockRelay struct {
	scripts  []ScriptedReply
	calls    []RelayCall
	fallback ScriptedReply
	mu       sync.Mutex
}

// NewMockRelay creates a relay that never replies unless scripted.
func NewMockRelay() *MockRelay {
	return &MockRelay{}
}

// AddReply queues a successful reply.
func (m *MockRelay) AddReply(text string) *MockRelay {
	return m.AddScript(ScriptedReply{Text: text, OK: true})
}

// AddFailure queues a failed call.
func (m *MockRelay) AddFailure() *MockRelay {
	return m.AddScript(ScriptedReply{})
}

// AddScript queues an arbitrary scripted reply.
func (m *MockRelay) AddScript(script ScriptedReply) *MockRelay {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, script)
	return m
}

// SetFallback sets the answer used when no script is queued.
func (m *MockRelay) SetFallback(text string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = ScriptedReply{Text: text, OK: ok}
}

// Reply implements relay.Relay.
func (m *MockRelay) Reply(ctx context.Context, history []session.Turn, conversationID string) (string, bool) {
	recorded := make([]session.Turn, len(history))
	copy(recorded, history)

	m.mu.Lock()
	m.calls = append(m.calls, RelayCall{History: recorded, ConversationID: conversationID})
	script := m.fallback
	if len(m.scripts) > 0 {
		script = m.scripts[0]
		m.scripts = m.scripts[1:]
	}
	m.mu.Unlock()

	if script.Delay > 0 {
		select {
		case <-time.After(script.Delay):
		case <-ctx.Done():
			return "", false
		}
	}
	if script.BeforeReturn != nil {
		script.BeforeReturn(recorded)
	}
	if !script.OK {
		return "", false
	}
	return script.Text, true
}

// GetCalls returns all recorded calls.
func (m *MockRelay) GetCalls() []RelayCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]RelayCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}
