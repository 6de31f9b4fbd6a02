package relay

import (
	"log/slog"

	"github.com/a-essam23/go-signal/pkg/state"
	"github.com/google/uuid"
)

// handleAddFriend resolves the target by display name and records a pending request.
func handleAddFriend(c *Cargo) error {
	self, ok := c.StateManager.GetConnection(c.ConnID)
	if !ok || !self.HasIdentity() {
		return reportAs(EventError, state.Validation("not logged in"))
	}

	username, err := c.StringField("username")
	if err != nil {
		return err
	}
	target, ok := c.StateManager.FindByName(username)
	if !ok {
		return state.ErrUserNotFound
	}
	if err := c.StateManager.RequestFriend(c.ConnID, target.ID); err != nil {
		return err
	}

	c.SendTo(target.ID, EventFriendRequest, FriendRequestPayload{
		FromUser:     self.ID.String(),
		FromUsername: self.DisplayName,
	})
	c.Reply(EventFriendRequestSent, UsernamePayload{Username: username})

	c.Logger.Info("Friend request sent", slog.String("target", target.ID.String()))
	return nil
}

func handleAcceptFriend(c *Cargo) error {
	requester, err := parseUserID(c, "from_user", state.ErrInvalidRequest)
	if err != nil {
		return err
	}
	if err := c.StateManager.AcceptFriend(c.ConnID, requester); err != nil {
		return err
	}

	self := presenceOf(c, c.ConnID)
	other := presenceOf(c, requester)
	c.Reply(EventFriendAdded, userEntry(other))
	c.SendTo(requester, EventFriendAdded, userEntry(self))

	c.Logger.Info("Friend request accepted", slog.String("requester", requester.String()))
	return nil
}

func handleRejectFriend(c *Cargo) error {
	requester, err := parseUserID(c, "from_user", state.ErrInvalidRequest)
	if err != nil {
		return err
	}
	if err := c.StateManager.RejectFriend(c.ConnID, requester); err != nil {
		return err
	}

	c.Reply(EventFriendRejected, UserIDPayload{UserID: requester.String()})
	c.SendTo(requester, EventFriendRequestDeclined, userEntry(presenceOf(c, c.ConnID)))
	return nil
}

func handleRemoveFriend(c *Cargo) error {
	friend, err := parseUserID(c, "user_id", state.ErrNotFriends)
	if err != nil {
		return err
	}
	if err := c.StateManager.RemoveFriend(c.ConnID, friend); err != nil {
		return err
	}

	c.Reply(EventFriendRemoved, UserIDPayload{UserID: friend.String()})
	c.SendTo(friend, EventFriendRemoved, UserIDPayload{UserID: c.ConnID.String()})
	return nil
}

func handleGetFriends(c *Cargo) error {
	friends := c.StateManager.ListFriends(c.ConnID)
	c.Reply(EventFriendsList, FriendsListPayload{Friends: userEntries(friends)})
	return nil
}

func handleGetFriendRequests(c *Cargo) error {
	requests := c.StateManager.ListPendingRequests(c.ConnID)
	c.Reply(EventFriendRequests, FriendRequestsPayload{Requests: userEntries(requests)})
	return nil
}

// parseUserID reads a connection id field, mapping unparsable ids to notFound.
// Non-string values are validation errors.
func parseUserID(c *Cargo, field string, notFound error) (uuid.UUID, error) {
	raw, err := c.StringField(field)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, notFound
	}
	return id, nil
}

// presenceOf returns the current presence of id, or just the id once it has disconnected.
func presenceOf(c *Cargo, id uuid.UUID) state.Presence {
	if conn, ok := c.StateManager.GetConnection(id); ok {
		return state.Presence{ID: conn.ID, DisplayName: conn.DisplayName}
	}
	return state.Presence{ID: id}
}
