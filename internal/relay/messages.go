package relay

import (
	"encoding/json"

	"github.com/a-essam23/go-signal/pkg/state"
	"github.com/pion/webrtc/v4"
)

// inbound event names.
const (
	EventJoinRoom          = "join-room"
	EventLeaveRoom         = "leave-room"
	EventOffer             = "offer"
	EventAnswer            = "answer"
	EventICECandidate      = "ice-candidate"
	EventSendMessage       = "send-message"
	EventAddFriend         = "add-friend"
	EventAcceptFriend      = "accept-friend"
	EventRejectFriend      = "reject-friend"
	EventRemoveFriend      = "remove-friend"
	EventGetFriends        = "get-friends"
	EventGetFriendRequests = "get-friend-requests"
	EventGetOnlineUsers    = "get-online-users"
)

// outbound event names.
const (
	EventConnected             = "connected"
	EventJoinedRoom            = "joined-room"
	EventLeftRoom              = "left-room"
	EventUserJoined            = "user-joined"
	EventUserLeft              = "user-left"
	EventNewMessage            = "new-message"
	EventFriendRequest         = "friend-request"
	EventFriendRequestSent     = "friend-request-sent"
	EventFriendAdded           = "friend-added"
	EventFriendRejected        = "friend-rejected"
	EventFriendRequestDeclined = "friend-request-declined"
	EventFriendRemoved         = "friend-removed"
	EventFriendsList           = "friends-list"
	EventFriendRequests        = "friend-requests"
	EventOnlineUsers           = "online-users"
	EventError                 = "error"
	EventFriendError           = "friend-error"
)

// ClientMessage is the envelope for every frame in both directions.
type ClientMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type serverMessage struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type ConnectedPayload struct {
	Message    string             `json:"message"`
	UserID     string             `json:"user_id"`
	ICEServers []webrtc.ICEServer `json:"ice_servers"`
}

type JoinedRoomPayload struct {
	RoomID     string   `json:"room_id"`
	UserID     string   `json:"user_id"`
	OtherUsers []string `json:"other_users"`
}

type RoomPayload struct {
	RoomID string `json:"room_id"`
}

// UserEntry is how a connection is presented to other clients.
type UserEntry struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type UserIDPayload struct {
	UserID string `json:"user_id"`
}

type NewMessagePayload struct {
	MessageID string          `json:"message_id"`
	UserID    string          `json:"user_id"`
	Username  string          `json:"username"`
	Message   json.RawMessage `json:"message"`
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type FriendRequestPayload struct {
	FromUser     string `json:"from_user"`
	FromUsername string `json:"from_username"`
}

type UsernamePayload struct {
	Username string `json:"username"`
}

type FriendsListPayload struct {
	Friends []UserEntry `json:"friends"`
}

type FriendRequestsPayload struct {
	Requests []UserEntry `json:"requests"`
}

type OnlineUsersPayload struct {
	Users []UserEntry `json:"users"`
}

func userEntry(p state.Presence) UserEntry {
	return UserEntry{UserID: p.ID.String(), Username: p.DisplayName}
}

func userEntries(ps []state.Presence) []UserEntry {
	out := make([]UserEntry, len(ps))
	for i, p := range ps {
		out[i] = userEntry(p)
	}
	return out
}

func presenceIDStrings(ps []state.Presence) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID.String()
	}
	return out
}
