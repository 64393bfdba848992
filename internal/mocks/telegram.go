package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/tgpulse/internal/telegram"
)

// updateChannelSize is the buffer size for simulated protocol updates.
const updateChannelSize = 100

// SignInCall records a SignIn invocation.
type SignInCall struct {
	Phone    string
	Code     string
	CodeHash string
}

// SentMessage records a message sent through a connection.
type SentMessage struct {
	Text   string
	ChatID int64
}

// MockConn is a test implementation of telegram.Conn. Behavior can be
// overridden per method through the exported Func fields.
type MockConn struct {
	SendCodeFunc      func(ctx context.Context, phone string) (*telegram.SentCode, error)
	SignInFunc        func(ctx context.Context, phone, code, codeHash string) error
	CheckPasswordFunc func(ctx context.Context, password string) error
	ExportSessionFunc func(ctx context.Context) (string, error)
	DialogsFunc       func(ctx context.Context, limit int) ([]telegram.Dialog, error)
	SendMessageFunc   func(ctx context.Context, chatID int64, text string) error

	updates     chan telegram.Update
	closed      chan struct{}
	codeHash    string
	dialogs     []telegram.Dialog
	codeReqs    []string
	signIns     []SignInCall
	passwords   []string
	sent        []SentMessage
	disconnects int
	closeOnce   sync.Once
	mu          sync.Mutex
}

// NewMockConn creates a connection that accepts every code and password.
func NewMockConn() *MockConn {
	return &MockConn{
		codeHash: "hash-123",
		updates:  make(chan telegram.Update, updateChannelSize),
		closed:   make(chan struct{}),
	}
}

// SetCodeHash sets the hash returned by the default SendCode.
func (m *MockConn) SetCodeHash(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codeHash = hash
}

// SetDialogs sets the dialogs returned by the default Dialogs.
func (m *MockConn) SetDialogs(dialogs []telegram.Dialog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialogs = dialogs
}

// SendCode implements telegram.Conn.
func (m *MockConn) SendCode(ctx context.Context, phone string) (*telegram.SentCode, error) {
	m.mu.Lock()
	m.codeReqs = append(m.codeReqs, phone)
	fn := m.SendCodeFunc
	hash := m.codeHash
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, phone)
	}
	return &telegram.SentCode{PhoneCodeHash: hash, Type: "app"}, nil
}

// SignIn implements telegram.Conn.
func (m *MockConn) SignIn(ctx context.Context, phone, code, codeHash string) error {
	m.mu.Lock()
	m.signIns = append(m.signIns, SignInCall{Phone: phone, Code: code, CodeHash: codeHash})
	fn := m.SignInFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, phone, code, codeHash)
	}
	return nil
}

// CheckPassword implements telegram.Conn.
func (m *MockConn) CheckPassword(ctx context.Context, password string) error {
	m.mu.Lock()
	m.passwords = append(m.passwords, password)
	fn := m.CheckPasswordFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, password)
	}
	return nil
}

// ExportSession implements telegram.Conn.
func (m *MockConn) ExportSession(ctx context.Context) (string, error) {
	m.mu.Lock()
	fn := m.ExportSessionFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return "session-blob", nil
}

// Dialogs implements telegram.Conn.
func (m *MockConn) Dialogs(ctx context.Context, limit int) ([]telegram.Dialog, error) {
	m.mu.Lock()
	fn := m.DialogsFunc
	dialogs := m.dialogs
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, limit)
	}
	if limit > 0 && len(dialogs) > limit {
		dialogs = dialogs[:limit]
	}
	out := make([]telegram.Dialog, len(dialogs))
	copy(out, dialogs)
	return out, nil
}

// SendMessage implements telegram.Conn.
func (m *MockConn) SendMessage(ctx context.Context, chatID int64, text string) error {
	m.mu.Lock()
	fn := m.SendMessageFunc
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, chatID, text); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{ChatID: chatID, Text: text})
	return nil
}

// Updates implements telegram.Conn. The returned channel closes when ctx is
// done or the connection is disconnected.
func (m *MockConn) Updates(ctx context.Context) (<-chan telegram.Update, error) {
	select {
	case <-m.closed:
		return nil, telegram.ErrTransportClosed
	default:
	}

	out := make(chan telegram.Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.closed:
				return
			case u := <-m.updates:
				select {
				case out <- u:
				case <-ctx.Done():
					return
				case <-m.closed:
					return
				}
			}
		}
	}()
	return out, nil
}

// SimulateUpdate queues an update for delivery to the current subscriber.
func (m *MockConn) SimulateUpdate(u telegram.Update) {
	m.updates <- u
}

// Disconnect implements telegram.Conn.
func (m *MockConn) Disconnect(_ context.Context) error {
	m.mu.Lock()
	m.disconnects++
	m.mu.Unlock()

	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

// CodeRequests returns the phones SendCode was called with.
func (m *MockConn) CodeRequests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.codeReqs))
	copy(out, m.codeReqs)
	return out
}

// SignInCalls returns all recorded SignIn calls.
func (m *MockConn) SignInCalls() []SignInCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SignInCall, len(m.signIns))
	copy(out, m.signIns)
	return out
}

// Passwords returns the passwords CheckPassword was called with.
func (m *MockConn) Passwords() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.passwords))
	copy(out, m.passwords)
	return out
}

// SentMessages returns all sent messages.
func (m *MockConn) SentMessages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// DisconnectCount returns how often Disconnect was called.
func (m *MockConn) DisconnectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnects
}

// IsDisconnected reports whether Disconnect was called at least once.
func (m *MockConn) IsDisconnected() bool {
	return m.DisconnectCount() > 0
}

// MockDialer is a test implementation of telegram.Dialer. It hands out
// queued connections first and fresh MockConns after that.
type MockDialer struct {
	dialErr error
	queued  []*MockConn
	dialed  []*MockConn
	mu      sync.Mutex
}

// NewMockDialer creates a dialer that returns conns in order.
func NewMockDialer(conns ...*MockConn) *MockDialer {
	return &MockDialer{queued: conns}
}

// Dial implements telegram.Dialer.
func (d *MockDialer) Dial(_ context.Context) (telegram.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dialErr != nil {
		return nil, fmt.Errorf("dial bridge: %w", d.dialErr)
	}

	var conn *MockConn
	if len(d.queued) > 0 {
		conn = d.queued[0]
		d.queued = d.queued[1:]
	} else {
		conn = NewMockConn()
	}
	d.dialed = append(d.dialed, conn)
	return conn, nil
}

// SetDialError makes every following Dial fail with err.
func (d *MockDialer) SetDialError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErr = err
}

// Dialed returns every connection handed out so far.
func (d *MockDialer) Dialed() []*MockConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*MockConn, len(d.dialed))
	copy(out, d.dialed)
	return out
}

// Last returns the most recently dialed connection, or nil.
func (d *MockDialer) Last() *MockConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.dialed) == 0 {
		return nil
	}
	return d.dialed[len(d.dialed)-1]
}
