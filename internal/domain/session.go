package domain

import (
	"regexp"
	"strings"
)

// Role is the privilege level a connection is bound to for its lifetime.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// RoleFromToken binds the administrator role to any non-empty role token.
func RoleFromToken(roleToken string) Role {
	if roleToken != "" {
		return RoleAdmin
	}
	return RoleViewer
}

func (r Role) String() string {
	return string(r)
}

// roomChannelPattern matches /rooms/{roomToken}[/{roleToken}], case-insensitively.
// Nothing beyond the first slash of the role part is interpreted.
var roomChannelPattern = regexp.MustCompile(`(?i)^/rooms/([^/]+)(?:/(.*))?$`)

// RoomChannelPattern returns the compiled room channel pattern.
func RoomChannelPattern() *regexp.Regexp {
	return roomChannelPattern
}

// RoomChannel is a parsed channel name.
type RoomChannel struct {
	RoomToken string
	RoleToken string
}

// ParseRoomChannel splits a channel name into its room and role tokens.
// The room token is lowercased; public ids are stored lowercase.
func ParseRoomChannel(name string) (RoomChannel, error) {
	m := roomChannelPattern.FindStringSubmatch(name)
	if m == nil {
		return RoomChannel{}, ErrMalformedChannel
	}
	return RoomChannel{
		RoomToken: strings.ToLower(m[1]),
		RoleToken: m[2],
	}, nil
}

func (c RoomChannel) Role() Role {
	return RoleFromToken(c.RoleToken)
}

// ViewerChannel and AdminChannel return the canonical client-facing channel names.
func ViewerChannel(publicID string) string {
	return "/rooms/" + publicID
}

func AdminChannel(publicID string) string {
	return "/rooms/" + publicID + "/admin"
}
