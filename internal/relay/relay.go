// Package relay forwards chat history to a conversational-AI service and
// returns its reply.
package relay

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/Veraticus/tgpulse/internal/session"
)

// Relay produces a reply for a chat. ok is false whenever no reply should be
// sent: the service is unconfigured, unreachable, or answered with an error.
type Relay interface {
	Reply(ctx context.Context, history []session.Turn, conversationID string) (reply string, ok bool)
}

// Disabled is the Relay used when relaying is switched off.
type Disabled struct{}

// Reply implements Relay and never answers.
func (Disabled) Reply(context.Context, []session.Turn, string) (string, bool) {
	return "", false
}

// conversationNamespace scopes conversation ids to this service.
var conversationNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Veraticus/tgpulse/relay"))

// ConversationID returns the stable conversation id of a session's chat.
func ConversationID(token string, chatID int64) string {
	name := token + ":" + strconv.FormatInt(chatID, 10)
	return uuid.NewSHA1(conversationNamespace, []byte(name)).String()
}
