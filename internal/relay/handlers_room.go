package relay

import (
	"log/slog"
)

// handleJoinRoom answers the newcomer first and only then announces it, so
// every existing member either sees the newcomer in user-joined or is listed
// in the newcomer's other_users.
func handleJoinRoom(c *Cargo) error {
	roomID, err := c.StringField("room_id")
	if err != nil {
		return err
	}
	username, err := c.StringField("username")
	if err != nil {
		return err
	}

	res, err := c.StateManager.JoinRoom(c.ConnID, roomID, username)
	if err != nil {
		return err
	}

	if prev := res.Previous; prev != nil {
		c.Broadcast(prev.Remaining, EventUserLeft, userEntry(prev.Who))
	}
	c.Reply(EventJoinedRoom, JoinedRoomPayload{
		RoomID:     res.RoomID,
		UserID:     c.ConnID.String(),
		OtherUsers: presenceIDStrings(res.Others),
	})
	if !res.Rejoined {
		c.Broadcast(res.Others, EventUserJoined, userEntry(res.Self))
	}

	c.Logger.Info("User joined room",
		slog.String("roomID", res.RoomID),
		slog.String("username", res.Self.DisplayName),
		slog.Int("others", len(res.Others)),
	)
	return nil
}

func handleLeaveRoom(c *Cargo) error {
	dep, err := c.StateManager.LeaveRoom(c.ConnID)
	if err != nil {
		return err
	}
	c.Reply(EventLeftRoom, RoomPayload{RoomID: dep.RoomID})
	c.Broadcast(dep.Remaining, EventUserLeft, userEntry(dep.Who))

	c.Logger.Info("User left room", slog.String("roomID", dep.RoomID))
	return nil
}

func handleGetOnlineUsers(c *Cargo) error {
	roomID, err := c.StringField("room_id")
	if err != nil {
		return err
	}
	members := c.StateManager.RoomMembers(roomID)
	c.Reply(EventOnlineUsers, OnlineUsersPayload{Users: userEntries(members)})
	return nil
}
