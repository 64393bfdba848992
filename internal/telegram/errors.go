package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrPasswordNeeded means the account requires its second factor.
	ErrPasswordNeeded = errors.New("two-step verification password required")

	// ErrCodeInvalid means the login code was wrong or empty.
	ErrCodeInvalid = errors.New("invalid verification code")

	// ErrCodeExpired means the login code is no longer valid.
	ErrCodeExpired = errors.New("verification code expired")

	// ErrPasswordInvalid means the second factor was rejected.
	ErrPasswordInvalid = errors.New("invalid password")

	// ErrTransportClosed is returned for calls on a closed transport.
	ErrTransportClosed = errors.New("transport is closed")
)

// RPCError represents a JSON-RPC error returned by the bridge. Message holds
// the protocol's error type, e.g. "PHONE_CODE_INVALID".
type RPCError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Error implements the error interface for RPCError.
func (e *RPCError) Error() string {
	return "RPC error " + strconv.Itoa(e.Code) + ": " + e.Message
}

// classify maps protocol error types onto the package sentinels, keeping the
// original error in the chain.
func classify(err error) error {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return err
	}

	switch {
	case strings.Contains(rpcErr.Message, "SESSION_PASSWORD_NEEDED"):
		return fmt.Errorf("%w: %w", ErrPasswordNeeded, err)
	case strings.Contains(rpcErr.Message, "PHONE_CODE_INVALID"),
		strings.Contains(rpcErr.Message, "PHONE_CODE_EMPTY"):
		return fmt.Errorf("%w: %w", ErrCodeInvalid, err)
	case strings.Contains(rpcErr.Message, "PHONE_CODE_EXPIRED"):
		return fmt.Errorf("%w: %w", ErrCodeExpired, err)
	case strings.Contains(rpcErr.Message, "PASSWORD_HASH_INVALID"):
		return fmt.Errorf("%w: %w", ErrPasswordInvalid, err)
	default:
		return err
	}
}
