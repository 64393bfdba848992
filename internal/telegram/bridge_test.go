package telegram_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Veraticus/tgpulse/internal/telegram"
)

var _ telegram.Transport = (*scriptedBridge)(nil)

// bridgeCall records one request sent to the scripted bridge.
type bridgeCall struct {
	Params any
	Method string
}

// scriptedBridge is an in-memory Transport. Each bridge method is answered
// with a canned result or error; a method marked hanging only returns once
// the caller's context ends.
type scriptedBridge struct {
	results map[string]json.RawMessage
	errs    map[string]error
	hanging map[string]bool
	updates chan *telegram.Notification
	calls   []bridgeCall
	mu      sync.Mutex
	closed  bool
}

func newScriptedBridge() *scriptedBridge {
	return &scriptedBridge{
		results: make(map[string]json.RawMessage),
		errs:    make(map[string]error),
		hanging: make(map[string]bool),
		updates: make(chan *telegram.Notification, 16),
	}
}

func (b *scriptedBridge) answer(method, raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[method] = json.RawMessage(raw)
}

func (b *scriptedBridge) fail(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs[method] = err
}

func (b *scriptedBridge) hang(method string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hanging[method] = true
}

// push delivers a notification to the subscriber, as the bridge's update
// stream would.
func (b *scriptedBridge) push(method, params string) {
	b.updates <- &telegram.Notification{JSONRPC: "2.0", Method: method, Params: json.RawMessage(params)}
}

func (b *scriptedBridge) callsTo(method string) []bridgeCall {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []bridgeCall
	for _, c := range b.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (b *scriptedBridge) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *scriptedBridge) Call(ctx context.Context, method string, params any) (*json.RawMessage, error) {
	b.mu.Lock()
	b.calls = append(b.calls, bridgeCall{Method: method, Params: params})
	closed := b.closed
	hanging := b.hanging[method]
	result, hasResult := b.results[method]
	err := b.errs[method]
	b.mu.Unlock()

	if closed {
		return nil, telegram.ErrTransportClosed
	}
	if hanging {
		<-ctx.Done()
		return nil, fmt.Errorf("context cancelled while waiting for response: %w", ctx.Err())
	}
	if err != nil {
		return nil, err
	}
	if !hasResult {
		return nil, fmt.Errorf("bridge has no answer for %s", method)
	}
	return &result, nil
}

func (b *scriptedBridge) Subscribe(_ context.Context) (<-chan *telegram.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, telegram.ErrTransportClosed
	}
	return b.updates, nil
}

func (b *scriptedBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.updates)
	}
	return nil
}
