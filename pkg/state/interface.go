package state

import (
	"github.com/google/uuid"
)

type Manager interface {
	// --- Connection Lifecycle ---
	RegisterConnection(connID uuid.UUID, ipAddr string) (Connection, error)
	// removes the connection from its room, purges its friend data and deletes it.
	// Returns a nil departure when the connection was not in a room.
	DeregisterConnection(connID uuid.UUID) (*Departure, error)
	GetConnection(connID uuid.UUID) (Connection, bool)
	IsOnline(connID uuid.UUID) bool
	// resolves a display name through the secondary index; first claimant wins.
	FindByName(displayName string) (Connection, bool)
	CountByIP(ipAddr string) int
	FindOldestByIP(ipAddr string) (Connection, bool)
	AllConnections() []Connection

	// --- Room & Membership Management ---
	// sets the connection identity and adds it to a room, creating the room if it doesn't exist.
	JoinRoom(connID uuid.UUID, roomID, displayName string) (*JoinResult, error)
	LeaveRoom(connID uuid.UUID) (*Departure, error)
	// members in join order, empty for unknown rooms.
	RoomMembers(roomID string) []Presence
	FindRoom(roomID string) (Room, bool)

	// --- Friend Graph ---
	RequestFriend(from, to uuid.UUID) error
	AcceptFriend(accepter, requester uuid.UUID) error
	RejectFriend(rejecter, requester uuid.UUID) error
	RemoveFriend(a, b uuid.UUID) error
	AreFriends(a, b uuid.UUID) bool
	FriendIDs(connID uuid.UUID) []uuid.UUID
	// requesters with an outstanding request to connID, oldest first.
	PendingRequests(connID uuid.UUID) []uuid.UUID
	// online friends only, sorted by display name.
	ListFriends(connID uuid.UUID) []Presence
	// online requesters with an outstanding request to connID.
	ListPendingRequests(connID uuid.UUID) []Presence

	Stats() Stats
}
