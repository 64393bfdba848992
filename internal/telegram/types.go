package telegram

// SentCode is the protocol's answer to a login code request.
type SentCode struct {
	PhoneCodeHash string `json:"phoneCodeHash"`
	Type          string `json:"type,omitempty"`
	Timeout       int    `json:"timeout,omitempty"`
}

// PeerSummary is the typed subset of a user, group or channel needed to
// derive a display name. Every field is optional.
type PeerSummary struct {
	Title     string `json:"title,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Username  string `json:"username,omitempty"`
	ID        int64  `json:"id"`
	IsUser    bool   `json:"isUser,omitempty"`
}

// Dialog is a chat entry of the account's dialog list.
type Dialog struct {
	Title       string `json:"title"`
	Type        string `json:"type"` // "user", "group" or "channel"
	ID          int64  `json:"id"`
	UnreadCount int    `json:"unreadCount"`
}

// Update is a single protocol event. Only one payload is non-nil.
type Update struct {
	Message    *MessageUpdate    `json:"message,omitempty"`
	ChatAction *ChatActionUpdate `json:"chatAction,omitempty"`
}

// MessageUpdate is a new message in a chat.
type MessageUpdate struct {
	Sender   *PeerSummary `json:"sender,omitempty"`
	Chat     *PeerSummary `json:"chat,omitempty"`
	Text     string       `json:"text"`
	ID       int64        `json:"id"`
	ChatID   int64        `json:"chatId"`
	Date     int64        `json:"date"`
	HasMedia bool         `json:"hasMedia,omitempty"`
	Outgoing bool         `json:"out,omitempty"`
}

// ChatAction identifies a membership service message.
type ChatAction string

const (
	// ActionUserAdded is a member added by another member.
	ActionUserAdded ChatAction = "user_added"
	// ActionUserJoinedByLink is a member joining through an invite link.
	ActionUserJoinedByLink ChatAction = "user_joined_by_link"
	// ActionUserRemoved is a member leaving or being removed.
	ActionUserRemoved ChatAction = "user_removed"
)

// IsJoin reports whether the action adds a member.
func (a ChatAction) IsJoin() bool {
	return a == ActionUserAdded || a == ActionUserJoinedByLink
}

// IsLeave reports whether the action removes a member.
func (a ChatAction) IsLeave() bool {
	return a == ActionUserRemoved
}

// ChatActionUpdate is a membership change in a group. Actor is the user of
// the action's originating message, when the protocol could resolve it.
type ChatActionUpdate struct {
	Chat   *PeerSummary `json:"chat,omitempty"`
	Actor  *PeerSummary `json:"actor,omitempty"`
	Action ChatAction   `json:"action"`
	ID     int64        `json:"id"`
	ChatID int64        `json:"chatId"`
}
