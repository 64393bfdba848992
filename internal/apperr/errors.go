// Package apperr defines the error taxonomy shared by the authentication,
// session and query layers. Callers branch on Kind instead of matching
// error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the boundary layer.
type Kind int

const (
	// KindInternal is an unexpected failure.
	KindInternal Kind = iota
	// KindUnauthorized means the bearer credential is missing or malformed.
	KindUnauthorized
	// KindSessionExpired means no pending login exists for the phone.
	KindSessionExpired
	// KindSessionNotFound means the token is not in the registry.
	KindSessionNotFound
	// KindInvalidCode means the protocol rejected the login code.
	KindInvalidCode
	// KindInvalidPassword means the protocol rejected the second factor.
	KindInvalidPassword
	// KindInvalidPhone means the phone number failed validation.
	KindInvalidPhone
	// KindUpstream means the protocol client or the AI service failed.
	KindUpstream
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "Unauthorized"
	case KindSessionExpired:
		return "SessionExpired"
	case KindSessionNotFound:
		return "SessionNotFound"
	case KindInvalidCode:
		return "InvalidCode"
	case KindInvalidPassword:
		return "InvalidPassword"
	case KindInvalidPhone:
		return "InvalidPhone"
	case KindUpstream:
		return "UpstreamError"
	default:
		return "Internal"
	}
}

// IsClientError reports whether the kind is caused by client input.
func (k Kind) IsClientError() bool {
	switch k {
	case KindSessionExpired, KindInvalidCode, KindInvalidPassword, KindInvalidPhone, KindUpstream:
		return true
	default:
		return false
	}
}

// Error carries a Kind, a human-readable message and an optional cause.
type Error struct {
	Cause   error
	Message string
	Kind    Kind
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// New creates an error of the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Unauthorized reports a missing or malformed credential.
func Unauthorized(msg string) error { return New(KindUnauthorized, msg) }

// SessionExpired reports that no pending login exists.
func SessionExpired(msg string) error { return New(KindSessionExpired, msg) }

// SessionNotFound reports an unknown session token.
func SessionNotFound(msg string) error { return New(KindSessionNotFound, msg) }

// InvalidCode reports a rejected login code.
func InvalidCode(msg string) error { return New(KindInvalidCode, msg) }

// InvalidPassword reports a rejected second factor.
func InvalidPassword(msg string) error { return New(KindInvalidPassword, msg) }

// InvalidPhone reports a malformed phone number.
func InvalidPhone(cause error) error {
	return Wrap(KindInvalidPhone, "invalid phone number", cause)
}

// Upstream reports a failure of an external collaborator. Error() keeps the
// cause's message so the client sees what the protocol said.
func Upstream(message string, cause error) error {
	return Wrap(KindUpstream, message, cause)
}
