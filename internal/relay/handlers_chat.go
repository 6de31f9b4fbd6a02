package relay

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/a-essam23/go-signal/pkg/state"
	"github.com/oklog/ulid/v2"
)

var messageTypes = map[string]bool{
	"text":  true,
	"emoji": true,
	"voice": true,
}

// handleSendMessage fans a chat message out to the sender's room, sender included.
func handleSendMessage(c *Cargo) error {
	conn, ok := c.StateManager.GetConnection(c.ConnID)
	if !ok {
		return state.ErrNotRegistered
	}
	if !conn.InRoom() {
		return state.ErrNotInRoom
	}
	roomID, err := c.StringField("room_id")
	if err != nil {
		return err
	}
	if roomID != "" && roomID != conn.RoomID {
		return state.Validation("not a member of room " + roomID)
	}

	msgType, err := c.StringField("type")
	if err != nil {
		return err
	}
	if msgType == "" {
		msgType = "text"
	}
	if !messageTypes[msgType] {
		return state.Validation("unsupported message type: " + msgType)
	}

	message := json.RawMessage("null")
	if v := c.Field("message"); v.Exists() {
		message = json.RawMessage(v.Raw)
	}
	timestamp := json.RawMessage(strconv.FormatInt(time.Now().UnixMilli(), 10))
	if v := c.Field("timestamp"); v.Exists() {
		timestamp = json.RawMessage(v.Raw)
	}

	c.Broadcast(c.StateManager.RoomMembers(conn.RoomID), EventNewMessage, NewMessagePayload{
		MessageID: ulid.Make().String(),
		UserID:    conn.ID.String(),
		Username:  conn.DisplayName,
		Message:   message,
		Type:      msgType,
		Timestamp: timestamp,
	})
	return nil
}
