package ingest

import (
	"strings"

	"github.com/Veraticus/tgpulse/internal/telegram"
)

const (
	// unknownName is used when a peer has no usable name.
	unknownName = "Unknown"

	// unknownActor names a membership change whose user is not resolvable.
	unknownActor = "Someone"

	// unknownGroup names a membership change whose chat is not resolvable.
	unknownGroup = "Unknown Group"
)

// DisplayName resolves a peer's name: its title, else the first and last
// name, else the @username, else "Unknown".
func DisplayName(peer *telegram.PeerSummary) string {
	if peer == nil {
		return unknownName
	}
	if title := strings.TrimSpace(peer.Title); title != "" {
		return title
	}
	if name := strings.TrimSpace(peer.FirstName + " " + peer.LastName); name != "" {
		return name
	}
	if username := strings.TrimPrefix(strings.TrimSpace(peer.Username), "@"); username != "" {
		return "@" + username
	}
	return unknownName
}

// actorName resolves the user behind a membership change. A missing or
// nameless user is "Someone".
func actorName(actor *telegram.PeerSummary) string {
	return nameOr(actor, unknownActor)
}

func groupName(chat *telegram.PeerSummary) string {
	return nameOr(chat, unknownGroup)
}

func nameOr(peer *telegram.PeerSummary, fallback string) string {
	if name := DisplayName(peer); name != unknownName {
		return name
	}
	return fallback
}
