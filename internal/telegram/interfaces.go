// Package telegram provides the messaging protocol capability consumed by the
// login flow and the ingestion pipeline. The production implementation talks
// JSON-RPC to a protocol bridge daemon; every account connection owns its own
// socket to the bridge.
package telegram

import (
	"context"
)

// Dialer opens fresh, unauthenticated protocol connections.
type Dialer interface {
	// Dial connects a new client. The returned connection must be released
	// with Disconnect.
	Dial(ctx context.Context) (Conn, error)
}

// Conn is a single account connection. The same Conn must be used for the
// whole login handshake: switching connections mid-handshake invalidates it.
type Conn interface {
	// SendCode requests a login code for phone.
	SendCode(ctx context.Context, phone string) (*SentCode, error)

	// SignIn submits the login code. It returns ErrPasswordNeeded when the
	// account has a second factor and ErrCodeInvalid on a wrong code.
	SignIn(ctx context.Context, phone, code, codeHash string) error

	// CheckPassword submits the second factor after ErrPasswordNeeded.
	CheckPassword(ctx context.Context, password string) error

	// ExportSession returns the persistent session blob of an authorized
	// connection.
	ExportSession(ctx context.Context) (string, error)

	// Dialogs lists up to limit dialogs, most recent first.
	Dialogs(ctx context.Context, limit int) ([]Dialog, error)

	// SendMessage sends text into the chat.
	SendMessage(ctx context.Context, chatID int64, text string) error

	// Updates returns the connection's event stream. The channel is closed
	// when ctx is done or the connection goes away.
	Updates(ctx context.Context) (<-chan Update, error)

	// Disconnect releases the connection.
	Disconnect(ctx context.Context) error
}
