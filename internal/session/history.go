package session

// MaxTurns is the per-chat cap of the conversation history.
const MaxTurns = 50

// Role tags a conversation turn.
type Role string

const (
	// RoleUser is a message written by the chat's other party.
	RoleUser Role = "user"
	// RoleAssistant is a reply produced by the relay.
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message. Content is never truncated.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is a bounded, chronological (oldest first) buffer of turns. The
// order is the opposite of ActivityLog and matters to the AI service.
type History struct {
	turns []Turn
	limit int
}

// NewHistory creates a history holding at most limit turns.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = MaxTurns
	}
	return &History{limit: limit}
}

// Append adds a turn at the end, dropping from the front past the limit.
func (h *History) Append(turn Turn) {
	h.turns = append(h.turns, turn)
	if over := len(h.turns) - h.limit; over > 0 {
		h.turns = append(h.turns[:0:0], h.turns[over:]...)
	}
}

// Turns returns a copy of the turns, oldest first.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of stored turns.
func (h *History) Len() int {
	return len(h.turns)
}
