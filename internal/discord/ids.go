package discord

import (
	"strings"

	"dlerbot/internal/session"
)

const customIDPrefix = "dler"

// CustomID encodes the session and action a button belongs to.
func CustomID(sessionID string, action session.Action) string {
	return customIDPrefix + ":" + sessionID + ":" + string(action)
}

// ParseCustomID reverses CustomID. Foreign or malformed ids are rejected.
func ParseCustomID(id string) (sessionID string, action session.Action, ok bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] != customIDPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], session.Action(parts[2]), true
}
