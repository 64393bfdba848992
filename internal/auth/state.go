package auth

import "github.com/Veraticus/tgpulse/internal/session"

// State is a step of the login flow for one phone number.
type State int

const (
	// StateNoSession indicates no login is in progress.
	StateNoSession State = iota
	// StateCodeRequested indicates a login code has been sent.
	StateCodeRequested
	// StatePasswordRequired indicates the code was accepted and the account
	// wants its second factor.
	StatePasswordRequired
	// StateAuthenticated indicates a session token has been issued.
	StateAuthenticated
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateNoSession:
		return "NoSession"
	case StateCodeRequested:
		return "CodeRequested"
	case StatePasswordRequired:
		return "PasswordRequired"
	case StateAuthenticated:
		return "Authenticated"
	default:
		return "Unknown"
	}
}

// IsValidTransition checks if a state transition is allowed.
func IsValidTransition(from, to State) bool {
	switch from {
	case StateNoSession:
		return to == StateCodeRequested || to == StateNoSession

	case StateCodeRequested:
		return to == StateCodeRequested || to == StatePasswordRequired ||
			to == StateAuthenticated || to == StateNoSession

	case StatePasswordRequired:
		// A new code request restarts the flow; resubmitting the code asks
		// for the password again.
		return to == StateCodeRequested || to == StatePasswordRequired ||
			to == StateAuthenticated || to == StateNoSession

	case StateAuthenticated:
		return to == StateNoSession

	default:
		return false
	}
}

// stateOf returns the state a pending login is in.
func stateOf(p session.PendingAuth) State {
	if p.AwaitingPassword {
		return StatePasswordRequired
	}
	return StateCodeRequested
}
