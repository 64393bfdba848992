package session_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tgpulse/internal/session"
)

func TestNewActivity(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 8, time.UTC)

	tests := []struct {
		kind   session.ActivityType
		prefix string
	}{
		{session.ActivityMessage, "msg_"},
		{session.ActivityMemberJoined, "join_"},
		{session.ActivityMemberLeft, "leave_"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			a := session.NewActivity(tt.kind, 77, "chat", "sender", "content", at)

			assert.Equal(t, tt.prefix+"77_1741064767000000008", a.ID)
			assert.Equal(t, tt.kind, a.Type)
			assert.Equal(t, "2025-03-04T05:06:07.000000008Z", a.Timestamp)

			parsed, err := a.Time()
			require.NoError(t, err)
			assert.True(t, parsed.Equal(at))
		})
	}
}

func TestActivity_TimeInvalid(t *testing.T) {
	_, err := session.Activity{Timestamp: "yesterday"}.Time()
	assert.Error(t, err)
}

func TestMessageContent(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"short text kept", "Hello", "Hello"},
		{"empty becomes placeholder", "", session.MediaPlaceholder},
		{"long text cut", strings.Repeat("a", 150), strings.Repeat("a", 100)},
		{"cut counts runes", strings.Repeat("é", 120), strings.Repeat("é", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, session.MessageContent(tt.text))
		})
	}
}

func TestActivityLog_DefaultLimit(t *testing.T) {
	log := session.NewActivityLog(0)
	for range session.MaxActivities + 5 {
		log.Add(session.Activity{})
	}
	assert.Equal(t, session.MaxActivities, log.Len())
}

func TestHistory_Append(t *testing.T) {
	h := session.NewHistory(2)
	h.Append(session.Turn{Role: session.RoleUser, Content: "a"})
	h.Append(session.Turn{Role: session.RoleAssistant, Content: "b"})
	h.Append(session.Turn{Role: session.RoleUser, Content: "c"})

	assert.Equal(t, []session.Turn{
		{Role: session.RoleAssistant, Content: "b"},
		{Role: session.RoleUser, Content: "c"},
	}, h.Turns())
}

func TestNewToken(t *testing.T) {
	a, err := session.NewToken()
	require.NoError(t, err)
	b, err := session.NewToken()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
}
