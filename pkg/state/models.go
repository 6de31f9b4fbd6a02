package state

import (
	"time"

	"github.com/google/uuid"
)

// snapshot of a single live transport session.
type Connection struct {
	ID          uuid.UUID
	IPAddress   string
	DisplayName string
	RoomID      string // empty until the connection joins a room
	CreatedAt   time.Time
	JoinedAt    time.Time
}

// InRoom reports whether the connection currently belongs to a room.
func (c Connection) InRoom() bool {
	return c.RoomID != ""
}

// HasIdentity reports whether the connection has announced a display name by joining.
func (c Connection) HasIdentity() bool {
	return !c.JoinedAt.IsZero()
}

// Presence is the public face of a connection: what other clients see.
type Presence struct {
	ID          uuid.UUID
	DisplayName string
}

// snapshot of a room and its members in join order.
type Room struct {
	ID      string
	Members []Presence
}

// JoinResult describes the outcome of a join so the caller can notify the right peers.
type JoinResult struct {
	Self   Presence
	RoomID string
	// Others are the members that were in the room before the caller, in join order.
	Others []Presence
	// Rejoined is true when the caller was already a member of this room.
	Rejoined bool
	// Previous is set when joining moved the caller out of another room.
	Previous *Departure
}

// Departure describes a connection leaving a room.
type Departure struct {
	Who    Presence
	RoomID string
	// Remaining members after the departure; empty when the room was destroyed.
	Remaining []Presence
	// RoomClosed is true when the departure emptied the room.
	RoomClosed bool
}

// Stats is a point-in-time view of the registry sizes.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Friendships int `json:"friendships"`
	Pending     int `json:"pending_requests"`
}
