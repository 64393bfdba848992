package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Bridge method names.
const (
	methodConnect       = "connect"
	methodSendCode      = "sendCode"
	methodSignIn        = "signIn"
	methodCheckPassword = "checkPassword"
	methodExportSession = "exportSession"
	methodGetDialogs    = "getDialogs"
	methodSendMessage   = "sendMessage"
	methodDisconnect    = "disconnect"

	notificationUpdate = "update"
)

// DefaultCallTimeout bounds a single bridge call whose context carries no
// earlier deadline.
const DefaultCallTimeout = 30 * time.Second

// rpcConn implements Conn on top of a Transport.
type rpcConn struct {
	transport   Transport
	logger      *slog.Logger
	callTimeout time.Duration

	mu           sync.Mutex
	subscription *subscription
}

// subscription tracks the active update subscription.
type subscription struct {
	cancel context.CancelFunc
	outCh  chan Update
	done   chan struct{}
}

// ConnOption configures a connection.
type ConnOption func(*rpcConn)

// WithConnLogger sets a custom logger.
func WithConnLogger(logger *slog.Logger) ConnOption {
	return func(c *rpcConn) {
		c.logger = logger
	}
}

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(timeout time.Duration) ConnOption {
	return func(c *rpcConn) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// NewConn creates a connection that speaks to the bridge over transport.
func NewConn(transport Transport, opts ...ConnOption) Conn {
	return newRPCConn(transport, opts...)
}

func newRPCConn(transport Transport, opts ...ConnOption) *rpcConn {
	c := &rpcConn{
		transport:   transport,
		logger:      slog.Default(),
		callTimeout: DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// call issues a bridge call bounded by the call timeout.
func (c *rpcConn) call(ctx context.Context, method string, params any) (*json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.transport.Call(ctx, method, params)
}

// connect initialises the bridge-side client for this socket.
func (c *rpcConn) connect(ctx context.Context, apiID int, apiHash string) error {
	params := map[string]any{
		"apiId":   apiID,
		"apiHash": apiHash,
	}
	if _, err := c.call(ctx, methodConnect, params); err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	return nil
}

// SendCode implements Conn.SendCode.
func (c *rpcConn) SendCode(ctx context.Context, phone string) (*SentCode, error) {
	result, err := c.call(ctx, methodSendCode, map[string]any{"phone": phone})
	if err != nil {
		return nil, fmt.Errorf("send code failed: %w", classify(err))
	}

	var sent SentCode
	if err := decodeResult(result, &sent); err != nil {
		return nil, err
	}
	if sent.PhoneCodeHash == "" {
		return nil, fmt.Errorf("invalid response: missing phoneCodeHash")
	}

	return &sent, nil
}

// SignIn implements Conn.SignIn.
func (c *rpcConn) SignIn(ctx context.Context, phone, code, codeHash string) error {
	params := map[string]any{
		"phone":         phone,
		"code":          code,
		"phoneCodeHash": codeHash,
	}
	if _, err := c.call(ctx, methodSignIn, params); err != nil {
		return fmt.Errorf("sign in failed: %w", classify(err))
	}
	return nil
}

// CheckPassword implements Conn.CheckPassword.
func (c *rpcConn) CheckPassword(ctx context.Context, password string) error {
	if _, err := c.call(ctx, methodCheckPassword, map[string]any{"password": password}); err != nil {
		return fmt.Errorf("check password failed: %w", classify(err))
	}
	return nil
}

// ExportSession implements Conn.ExportSession.
func (c *rpcConn) ExportSession(ctx context.Context) (string, error) {
	result, err := c.call(ctx, methodExportSession, nil)
	if err != nil {
		return "", fmt.Errorf("export session failed: %w", classify(err))
	}

	var resp struct {
		Session string `json:"session"`
	}
	if err := decodeResult(result, &resp); err != nil {
		return "", err
	}

	return resp.Session, nil
}

// Dialogs implements Conn.Dialogs.
func (c *rpcConn) Dialogs(ctx context.Context, limit int) ([]Dialog, error) {
	result, err := c.call(ctx, methodGetDialogs, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("get dialogs failed: %w", classify(err))
	}

	var dialogs []Dialog
	if err := decodeResult(result, &dialogs); err != nil {
		return nil, err
	}

	return dialogs, nil
}

// SendMessage implements Conn.SendMessage.
func (c *rpcConn) SendMessage(ctx context.Context, chatID int64, text string) error {
	if text == "" {
		return fmt.Errorf("message cannot be empty")
	}

	params := map[string]any{
		"chatId": chatID,
		"text":   text,
	}
	if _, err := c.call(ctx, methodSendMessage, params); err != nil {
		return fmt.Errorf("send message failed: %w", classify(err))
	}
	return nil
}

// Updates implements Conn.Updates. A second call replaces the previous
// subscription.
func (c *rpcConn) Updates(ctx context.Context) (<-chan Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscription != nil {
		c.subscription.cancel()
		<-c.subscription.done
		c.subscription = nil
	}

	notifications, err := c.transport.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to updates: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		cancel: cancel,
		outCh:  make(chan Update),
		done:   make(chan struct{}),
	}
	c.subscription = sub

	go c.runSubscription(subCtx, sub, notifications)

	return sub.outCh, nil
}

// runSubscription converts bridge notifications into updates.
func (c *rpcConn) runSubscription(ctx context.Context, sub *subscription, notifications <-chan *Notification) {
	defer close(sub.done)
	defer close(sub.outCh)

	for {
		select {
		case <-ctx.Done():
			return

		case notif, ok := <-notifications:
			if !ok {
				return
			}

			update, ok := c.parseUpdate(notif)
			if !ok {
				continue
			}

			select {
			case sub.outCh <- update:
			case <-ctx.Done():
				return
			}
		}
	}
}

// parseUpdate extracts an update from a notification.
func (c *rpcConn) parseUpdate(notif *Notification) (Update, bool) {
	if notif == nil || notif.Method != notificationUpdate {
		return Update{}, false
	}

	var params struct {
		Update *Update `json:"update"`
	}
	if err := json.Unmarshal(notif.Params, &params); err != nil {
		c.logger.Debug("dropping malformed update notification", "error", err)
		return Update{}, false
	}
	if params.Update == nil {
		return Update{}, false
	}

	return *params.Update, true
}

// Disconnect implements Conn.Disconnect. The bridge is told to drop its
// client before the socket is closed; errors from the goodbye are ignored
// since the account-side session may already be gone.
func (c *rpcConn) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.subscription != nil {
		c.subscription.cancel()
		<-c.subscription.done
		c.subscription = nil
	}
	c.mu.Unlock()

	if _, err := c.call(ctx, methodDisconnect, nil); err != nil {
		c.logger.Debug("bridge disconnect call failed", "error", err)
	}

	if err := c.transport.Close(); err != nil {
		return fmt.Errorf("disconnect failed: %w", err)
	}
	return nil
}

func decodeResult(result *json.RawMessage, v any) error {
	if result == nil {
		return fmt.Errorf("invalid response: empty result")
	}
	if err := json.Unmarshal(*result, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
