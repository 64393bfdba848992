package session

import (
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	// MaxActivities is the per-session cap of the activity log.
	MaxActivities = 100

	// MaxContentLength is the rune limit of a message activity's content.
	MaxContentLength = 100

	// MediaPlaceholder stands in for messages without text.
	MediaPlaceholder = "📎 Media message"
)

// ActivityType enumerates the kinds of activity records.
type ActivityType string

const (
	// ActivityMessage is an inbound message.
	ActivityMessage ActivityType = "message"
	// ActivityMemberJoined is a member added to or joining a group.
	ActivityMemberJoined ActivityType = "member_joined"
	// ActivityMemberLeft is a member leaving or removed from a group.
	ActivityMemberLeft ActivityType = "member_left"
)

// idPrefix returns the prefix used in synthesized record ids.
func (t ActivityType) idPrefix() string {
	switch t {
	case ActivityMemberJoined:
		return "join"
	case ActivityMemberLeft:
		return "leave"
	default:
		return "msg"
	}
}

// Activity is a normalized, immutable record of one observed account event.
type Activity struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	Chat      string       `json:"chat"`
	Sender    string       `json:"sender"`
	Content   string       `json:"content"`
	Timestamp string       `json:"timestamp"`
}

// NewActivity builds a record stamped with generation time at. The id
// combines the protocol event id with the timestamp since event ids can
// repeat across chats.
func NewActivity(kind ActivityType, eventID int64, chat, sender, content string, at time.Time) Activity {
	return Activity{
		ID:        fmt.Sprintf("%s_%d_%d", kind.idPrefix(), eventID, at.UnixNano()),
		Type:      kind,
		Chat:      chat,
		Sender:    sender,
		Content:   content,
		Timestamp: at.Format(time.RFC3339Nano),
	}
}

// Time parses the record's timestamp.
func (a Activity) Time() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, a.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid activity timestamp %q: %w", a.Timestamp, err)
	}
	return t, nil
}

// MessageContent returns the content stored for a message: the text cut to
// MaxContentLength runes, or MediaPlaceholder when there is no text.
func MessageContent(text string) string {
	if text == "" {
		return MediaPlaceholder
	}
	return Truncate(text, MaxContentLength)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// ActivityLog is a bounded, newest-first buffer of activities. It is not
// safe for concurrent use; the registry serializes access per session.
type ActivityLog struct {
	records []Activity
	limit   int
}

// NewActivityLog creates a log holding at most limit records.
func NewActivityLog(limit int) *ActivityLog {
	if limit <= 0 {
		limit = MaxActivities
	}
	return &ActivityLog{limit: limit}
}

// Add inserts rec at the front, evicting the oldest record past the limit.
func (l *ActivityLog) Add(rec Activity) {
	l.records = append(l.records, Activity{})
	copy(l.records[1:], l.records)
	l.records[0] = rec
	if len(l.records) > l.limit {
		l.records = l.records[:l.limit]
	}
}

// List returns a copy of the records, newest first.
func (l *ActivityLog) List() []Activity {
	out := make([]Activity, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of stored records.
func (l *ActivityLog) Len() int {
	return len(l.records)
}
