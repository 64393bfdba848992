package telegram

import (
	"context"
	"encoding/json"
)

// Transport carries JSON-RPC traffic between a connection and the bridge.
type Transport interface {
	// Call sends a request and waits for its response.
	Call(ctx context.Context, method string, params any) (*json.RawMessage, error)

	// Subscribe returns the stream of bridge notifications. The channel is
	// closed when the transport shuts down.
	Subscribe(ctx context.Context) (<-chan *Notification, error)

	Close() error
}

// Notification is a JSON-RPC message without an id, pushed by the bridge.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}
