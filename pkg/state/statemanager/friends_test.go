package statemanager_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/a-essam23/go-signal/pkg/state"
	"github.com/google/uuid"
)

func TestFriendRequestAndAccept(t *testing.T) {
	m := newTestManager()
	ids := register(t, m, 2)
	alice, bob := ids[0], ids[1]
	mustJoin(t, m, alice, "r1", "alice")
	mustJoin(t, m, bob, "r1", "bob")

	if err := m.RequestFriend(alice, bob); err != nil {
		t.Fatalf("RequestFriend failed: %v", err)
	}
	// duplicates are not errors
	if err := m.RequestFriend(alice, bob); err != nil {
		t.Fatalf("Duplicate RequestFriend failed: %v", err)
	}
	pending := m.PendingRequests(bob)
	if len(pending) != 1 || pending[0] != alice {
		t.Fatalf("Expected one pending request from alice, got %v", pending)
	}

	if err := m.AcceptFriend(bob, alice); err != nil {
		t.Fatalf("AcceptFriend failed: %v", err)
	}
	if !m.AreFriends(alice, bob) || !m.AreFriends(bob, alice) {
		t.Fatal("Expected symmetric friendship after accept")
	}
	if len(m.PendingRequests(bob)) != 0 {
		t.Error("Expected pending request to be removed on accept")
	}

	friends := m.ListFriends(alice)
	if len(friends) != 1 || friends[0].ID != bob || friends[0].DisplayName != "bob" {
		t.Errorf("Unexpected friends list %+v", friends)
	}

	if err := m.RequestFriend(alice, bob); !errors.Is(err, state.ErrAlreadyFriends) {
		t.Errorf("Expected ErrAlreadyFriends, got %v", err)
	}
}

func TestFriendRequestErrors(t *testing.T) {
	m := newTestManager()
	ids := register(t, m, 2)

	tests := []struct {
		name     string
		from, to uuid.UUID
		wantErr  error
		wantKind error
	}{
		{"self", ids[0], ids[0], state.ErrSelfFriend, state.ErrConflict},
		{"offline target", ids[0], uuid.New(), state.ErrUserNotFound, state.ErrNotFound},
		{"unregistered sender", uuid.New(), ids[1], state.ErrNotRegistered, state.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.RequestFriend(tt.from, tt.to)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("Expected error kind %v, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestAcceptWithoutPendingMutatesNothing(t *testing.T) {
	m := newTestManager()
	ids := register(t, m, 3)
	m.RequestFriend(ids[2], ids[0])
	before := m.Stats()

	err := m.AcceptFriend(ids[0], ids[1])
	if !errors.Is(err, state.ErrInvalidRequest) || !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("Expected ErrInvalidRequest, got %v", err)
	}
	// the request goes requester -> accepter, not the other way round
	if err := m.AcceptFriend(ids[2], ids[0]); !errors.Is(err, state.ErrInvalidRequest) {
		t.Fatalf("Expected ErrInvalidRequest for reversed direction, got %v", err)
	}
	if after := m.Stats(); after != before {
		t.Errorf("State changed after failed accept: before %+v after %+v", before, after)
	}
}

func TestRejectAndRemoveFriend(t *testing.T) {
	m := newTestManager()
	ids := register(t, m, 2)
	a, b := ids[0], ids[1]

	m.RequestFriend(a, b)
	if err := m.RejectFriend(b, a); err != nil {
		t.Fatalf("RejectFriend failed: %v", err)
	}
	if len(m.PendingRequests(b)) != 0 || m.AreFriends(a, b) {
		t.Fatal("Reject must drop the request without creating an edge")
	}
	if err := m.RejectFriend(b, a); !errors.Is(err, state.ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest on second reject, got %v", err)
	}

	// crossed requests settle both directions on accept
	m.RequestFriend(a, b)
	m.RequestFriend(b, a)
	m.AcceptFriend(b, a)
	if len(m.PendingRequests(a)) != 0 || len(m.PendingRequests(b)) != 0 {
		t.Error("Expected crossed requests to be cleared by accept")
	}

	if err := m.RemoveFriend(b, a); err != nil {
		t.Fatalf("RemoveFriend failed: %v", err)
	}
	if m.AreFriends(a, b) || m.AreFriends(b, a) {
		t.Error("Expected both directions removed")
	}
	if err := m.RemoveFriend(a, b); !errors.Is(err, state.ErrNotFriends) {
		t.Errorf("Expected ErrNotFriends, got %v", err)
	}
}

func TestDisconnectPurgesFriendData(t *testing.T) {
	m := newTestManager()
	ids := register(t, m, 3)
	a, b, c := ids[0], ids[1], ids[2]

	m.RequestFriend(a, b)
	m.AcceptFriend(b, a)
	m.RequestFriend(a, c) // outgoing pending from a
	m.RequestFriend(c, a) // incoming pending at a

	m.DeregisterConnection(a)

	if m.AreFriends(b, a) || len(m.FriendIDs(b)) != 0 {
		t.Error("Expected friend edge to the departed connection to be removed")
	}
	if len(m.PendingRequests(c)) != 0 {
		t.Error("Expected pending request from the departed connection to be removed")
	}
	if len(m.PendingRequests(a)) != 0 {
		t.Error("Expected pending requests held by the departed connection to be removed")
	}
	if err := m.AcceptFriend(c, a); !errors.Is(err, state.ErrInvalidRequest) {
		t.Errorf("Expected stale request to be unacceptable, got %v", err)
	}
	if s := m.Stats(); s.Friendships != 0 || s.Pending != 0 {
		t.Errorf("Expected empty graph, got %+v", s)
	}
}

func TestListFriendsOnlineOnly(t *testing.T) {
	m := newTestManager()
	ids := register(t, m, 3)
	me := ids[0]
	mustJoin(t, m, ids[1], "r", "zed")
	mustJoin(t, m, ids[2], "r", "amy")
	for _, friend := range ids[1:] {
		m.RequestFriend(friend, me)
		m.AcceptFriend(me, friend)
	}

	friends := m.ListFriends(me)
	if len(friends) != 2 || friends[0].DisplayName != "amy" || friends[1].DisplayName != "zed" {
		t.Fatalf("Expected friends sorted by name, got %+v", friends)
	}

	m.DeregisterConnection(ids[2])
	friends = m.ListFriends(me)
	if len(friends) != 1 || friends[0].ID != ids[1] {
		t.Errorf("Expected only the online friend, got %+v", friends)
	}
	if got := m.ListFriends(uuid.New()); got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil list for unknown id, got %v", got)
	}
}

// friendship stays symmetric under an arbitrary sequence of graph operations.
func TestFriendshipSymmetry(t *testing.T) {
	m := newTestManager()
	ids := register(t, m, 6)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		a := ids[rng.Intn(len(ids))]
		b := ids[rng.Intn(len(ids))]
		switch rng.Intn(4) {
		case 0:
			m.RequestFriend(a, b)
		case 1:
			m.AcceptFriend(a, b)
		case 2:
			m.RejectFriend(a, b)
		case 3:
			m.RemoveFriend(a, b)
		}

		for _, x := range ids {
			for _, y := range m.FriendIDs(x) {
				if y == x {
					t.Fatalf("self edge on %s", x)
				}
				if !m.AreFriends(y, x) {
					t.Fatalf("asymmetric edge %s -> %s after step %d", x, y, i)
				}
			}
		}
	}
}
