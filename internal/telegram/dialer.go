package telegram

import (
	"context"
	"fmt"
	"log/slog"
)

// BridgeDialer opens one bridge socket per account connection.
type BridgeDialer struct {
	logger  *slog.Logger
	network string
	address string
	apiHash string
	apiID   int
}

// NewBridgeDialer creates a dialer for the bridge at addr
// ("unix:///path" or "tcp://host:port").
func NewBridgeDialer(addr string, apiID int, apiHash string, logger *slog.Logger) (*BridgeDialer, error) {
	network, address, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	if apiID == 0 || apiHash == "" {
		return nil, fmt.Errorf("api id and api hash are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &BridgeDialer{
		logger:  logger.With(slog.String("component", "telegram.dialer")),
		network: network,
		address: address,
		apiHash: apiHash,
		apiID:   apiID,
	}, nil
}

// Dial implements Dialer.Dial.
func (d *BridgeDialer) Dial(ctx context.Context) (Conn, error) {
	transport, err := DialSocketTransport(ctx, d.network, d.address)
	if err != nil {
		return nil, err
	}

	conn := newRPCConn(transport, WithConnLogger(d.logger))
	if err := conn.connect(ctx, d.apiID, d.apiHash); err != nil {
		_ = transport.Close()
		return nil, err
	}

	d.logger.Debug("bridge connection established", "network", d.network, "address", d.address)
	return conn, nil
}
