package telegram

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/Veraticus/tgpulse/internal/metrics"
)

// MaxQueuedNotifications bounds the notifications held for a subscriber
// that is not keeping up. Past it new notifications are dropped.
const MaxQueuedNotifications = 10000

// SocketTransport implements Transport over a stream socket speaking
// newline-delimited JSON-RPC 2.0. The read loop never waits on the
// notification subscriber, so responses are always delivered.
type SocketTransport struct {
	conn net.Conn

	pending   map[string]chan *rpcResponse
	pendingMu sync.Mutex
	requestID atomic.Uint64

	queue   []*Notification
	queueMu sync.Mutex
	queued  chan struct{}
	dropped atomic.Uint64

	notifications chan *Notification

	done      chan struct{}
	pumpDone  chan struct{}
	stopCh    chan struct{}
	closeOnce sync.Once
}

// ParseAddress splits a bridge address such as "unix:///run/tgbridge/socket"
// or "tcp://127.0.0.1:7777" into a network and a dial address.
func ParseAddress(addr string) (string, string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", "", fmt.Errorf("invalid bridge address %q: %w", addr, err)
	}

	switch u.Scheme {
	case "unix":
		if u.Path == "" {
			return "", "", fmt.Errorf("invalid bridge address %q: missing socket path", addr)
		}
		return "unix", u.Path, nil
	case "tcp":
		if u.Host == "" {
			return "", "", fmt.Errorf("invalid bridge address %q: missing host", addr)
		}
		return "tcp", u.Host, nil
	default:
		return "", "", fmt.Errorf("invalid bridge address %q: unsupported scheme %q", addr, u.Scheme)
	}
}

// DialSocketTransport connects to the bridge at network/address.
func DialSocketTransport(ctx context.Context, network, address string) (*SocketTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to protocol bridge: %w", err)
	}

	return NewSocketTransport(conn), nil
}

// NewSocketTransport wraps an established connection.
func NewSocketTransport(conn net.Conn) *SocketTransport {
	t := &SocketTransport{
		conn:          conn,
		pending:       make(map[string]chan *rpcResponse),
		queued:        make(chan struct{}, 1),
		notifications: make(chan *Notification),
		done:          make(chan struct{}),
		pumpDone:      make(chan struct{}),
		stopCh:        make(chan struct{}),
	}

	go t.readLoop()
	go t.pump()

	return t
}

// Call implements Transport.Call.
func (t *SocketTransport) Call(ctx context.Context, method string, params any) (*json.RawMessage, error) {
	id := "req-" + strconv.FormatUint(t.requestID.Add(1), 10)

	req := &rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respChan := make(chan *rpcResponse, 1)
	t.pendingMu.Lock()
	t.pending[id] = respChan
	t.pendingMu.Unlock()

	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	if _, writeErr := fmt.Fprintf(t.conn, "%s\n", data); writeErr != nil {
		return nil, fmt.Errorf("failed to send request: %w", writeErr)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled while waiting for response: %w", ctx.Err())
	case <-t.done:
		return nil, ErrTransportClosed
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, &RPCError{
				Code:    resp.Error.Code,
				Message: resp.Error.Message,
			}
		}
		return resp.Result, nil
	}
}

// readLoop continuously reads from the socket, routing responses to their
// callers and queueing notifications for pump.
func (t *SocketTransport) readLoop() {
	defer close(t.done)

	scanner := bufio.NewScanner(t.conn)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		select {
		case <-t.stopCh:
			return
		default:
		}

		line := scanner.Bytes()

		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err == nil && resp.ID != "" {
			t.pendingMu.Lock()
			if ch, ok := t.pending[resp.ID]; ok {
				ch <- &resp
			}
			t.pendingMu.Unlock()
			continue
		}

		var notif Notification
		if err := json.Unmarshal(line, &notif); err == nil && notif.Method != "" {
			t.enqueue(&notif)
		}
	}
}

func (t *SocketTransport) enqueue(notif *Notification) {
	t.queueMu.Lock()
	if len(t.queue) >= MaxQueuedNotifications {
		t.queueMu.Unlock()
		t.dropped.Add(1)
		metrics.UpdatesDropped.Inc()
		return
	}
	t.queue = append(t.queue, notif)
	t.queueMu.Unlock()

	select {
	case t.queued <- struct{}{}:
	default:
	}
}

func (t *SocketTransport) dequeue() (*Notification, bool) {
	t.queueMu.Lock()
	defer t.queueMu.Unlock()

	if len(t.queue) == 0 {
		return nil, false
	}
	notif := t.queue[0]
	t.queue[0] = nil
	t.queue = t.queue[1:]
	return notif, true
}

// pump is the only writer of the notifications channel and closes it once
// the read loop has ended and the queue is drained, or on Close.
func (t *SocketTransport) pump() {
	defer close(t.pumpDone)
	defer close(t.notifications)

	for {
		notif, ok := t.dequeue()
		if !ok {
			select {
			case <-t.queued:
				continue
			case <-t.stopCh:
				return
			case <-t.done:
				if notif, ok = t.dequeue(); !ok {
					return
				}
			}
		}

		select {
		case t.notifications <- notif:
		case <-t.stopCh:
			return
		}
	}
}

// Dropped returns how many notifications were discarded because the queue
// was full.
func (t *SocketTransport) Dropped() uint64 {
	return t.dropped.Load()
}

// Subscribe implements Transport.Subscribe.
func (t *SocketTransport) Subscribe(_ context.Context) (<-chan *Notification, error) {
	return t.notifications, nil
}

// Close implements Transport.Close.
func (t *SocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopCh)
		err = t.conn.Close()
		<-t.done
		<-t.pumpDone
	})
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

type rpcRequest struct {
	Params  any    `json:"params,omitempty"`
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
}

type rpcResponse struct {
	Result  *json.RawMessage `json:"result,omitempty"`
	Error   *rpcError        `json:"error,omitempty"`
	JSONRPC string           `json:"jsonrpc"`
	ID      string           `json:"id"`
}

type rpcError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}
