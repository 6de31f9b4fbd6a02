package statemanager

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/a-essam23/go-signal/pkg/state"
	"github.com/google/uuid"
)

const DefaultDisplayName = "Anonymous"

type Options struct {
	// display name given to connections that join without one.
	DefaultDisplayName string
	// reject joins whose display name is already held by another live connection.
	UniqueDisplayNames bool
}

// InMemoryManager owns the connection registry, the room directory and the
// friend graph. Locks are always acquired in the order connMu -> roomMu -> friendMu.
type InMemoryManager struct {
	reg   *registry
	rooms *directory
	graph *graph

	connMu   sync.RWMutex
	roomMu   sync.RWMutex
	friendMu sync.RWMutex

	uniqueNames bool
	now         func() time.Time
	logger      *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger, opts Options) *InMemoryManager {
	if opts.DefaultDisplayName == "" {
		opts.DefaultDisplayName = DefaultDisplayName
	}
	return &InMemoryManager{
		reg:         newRegistry(opts.DefaultDisplayName),
		rooms:       newDirectory(),
		graph:       newGraph(),
		uniqueNames: opts.UniqueDisplayNames,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Manager.
var _ state.Manager = (*InMemoryManager)(nil)

// --- Connection Lifecycle ---

func (m *InMemoryManager) RegisterConnection(connID uuid.UUID, ipAddr string) (state.Connection, error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	c, ok := m.reg.add(connID, ipAddr, m.now())
	if !ok {
		return state.Connection{}, state.ErrAlreadyRegistered
	}
	m.logger.Debug("Connection registered", slog.String("connID", connID.String()), slog.String("ip", ipAddr))
	return *c, nil
}

func (m *InMemoryManager) DeregisterConnection(connID uuid.UUID) (*state.Departure, error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.roomMu.Lock()
	defer m.roomMu.Unlock()
	m.friendMu.Lock()
	defer m.friendMu.Unlock()

	c, ok := m.reg.get(connID)
	if !ok {
		// connection is already deregistered
		return nil, nil
	}

	var departure *state.Departure
	if c.InRoom() {
		departure = m.leaveLocked(c)
	}
	m.graph.purge(connID)
	m.reg.remove(connID)

	m.logger.Debug("Connection deregistered", slog.String("connID", connID.String()))
	return departure, nil
}

func (m *InMemoryManager) GetConnection(connID uuid.UUID) (state.Connection, bool) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	c, ok := m.reg.get(connID)
	if !ok {
		return state.Connection{}, false
	}
	return *c, true
}

func (m *InMemoryManager) IsOnline(connID uuid.UUID) bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	_, ok := m.reg.get(connID)
	return ok
}

func (m *InMemoryManager) FindByName(displayName string) (state.Connection, bool) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	c, ok := m.reg.lookup(displayName)
	if !ok {
		return state.Connection{}, false
	}
	return *c, true
}

func (m *InMemoryManager) CountByIP(ipAddr string) int {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	n := 0
	for _, c := range m.reg.conns {
		if c.IPAddress == ipAddr {
			n++
		}
	}
	return n
}

func (m *InMemoryManager) FindOldestByIP(ipAddr string) (state.Connection, bool) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	var oldest *state.Connection
	for _, c := range m.reg.conns {
		if c.IPAddress != ipAddr {
			continue
		}
		if oldest == nil || c.CreatedAt.Before(oldest.CreatedAt) {
			oldest = c
		}
	}
	if oldest == nil {
		return state.Connection{}, false
	}
	return *oldest, true
}

func (m *InMemoryManager) AllConnections() []state.Connection {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	conns := make([]state.Connection, 0, len(m.reg.conns))
	for _, c := range m.reg.conns {
		conns = append(conns, *c)
	}
	return conns
}

// --- Room & Membership Management ---

func (m *InMemoryManager) JoinRoom(connID uuid.UUID, roomID, displayName string) (*state.JoinResult, error) {
	if roomID == "" {
		return nil, state.ErrRoomIDRequired
	}
	if displayName == "" {
		displayName = m.reg.placeholder
	}

	// Lock connections and rooms so the identity update, the membership change
	// and the "others" snapshot are one atomic step.
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	c, ok := m.reg.get(connID)
	if !ok {
		return nil, state.ErrNotRegistered
	}
	if m.uniqueNames && m.reg.nameHeldByOther(displayName, connID) {
		return nil, state.ErrUsernameTaken
	}

	result := &state.JoinResult{RoomID: roomID}
	if c.InRoom() && c.RoomID != roomID {
		result.Previous = m.leaveLocked(c)
	}

	result.Others = m.reg.presences(m.rooms.memberIDs(roomID, connID))
	result.Rejoined = !m.rooms.join(roomID, connID)
	m.reg.setIdentity(c, displayName, roomID, m.now())
	result.Self = state.Presence{ID: c.ID, DisplayName: c.DisplayName}

	m.logger.Debug("Connection joined room",
		slog.String("connID", connID.String()),
		slog.String("roomID", roomID),
		slog.Bool("rejoined", result.Rejoined),
	)
	return result, nil
}

func (m *InMemoryManager) LeaveRoom(connID uuid.UUID) (*state.Departure, error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	c, ok := m.reg.get(connID)
	if !ok {
		return nil, state.ErrNotRegistered
	}
	if !c.InRoom() {
		return nil, state.ErrNotInRoom
	}
	return m.leaveLocked(c), nil
}

// leaveLocked removes c from its room. Caller holds connMu and roomMu for writing.
func (m *InMemoryManager) leaveLocked(c *state.Connection) *state.Departure {
	roomID := c.RoomID
	_, closed := m.rooms.leave(roomID, c.ID)
	c.RoomID = ""

	if closed {
		m.logger.Debug("Removed empty room", slog.String("roomID", roomID))
	}
	m.logger.Debug("Connection left room", slog.String("connID", c.ID.String()), slog.String("roomID", roomID))
	return &state.Departure{
		Who:        state.Presence{ID: c.ID, DisplayName: c.DisplayName},
		RoomID:     roomID,
		Remaining:  m.reg.presences(m.rooms.memberIDs(roomID)),
		RoomClosed: closed,
	}
}

func (m *InMemoryManager) RoomMembers(roomID string) []state.Presence {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()

	return m.reg.presences(m.rooms.memberIDs(roomID))
}

func (m *InMemoryManager) FindRoom(roomID string) (state.Room, bool) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()

	if !m.rooms.exists(roomID) {
		return state.Room{}, false
	}
	return state.Room{
		ID:      roomID,
		Members: m.reg.presences(m.rooms.memberIDs(roomID)),
	}, true
}

// --- Friend Graph ---

func (m *InMemoryManager) RequestFriend(from, to uuid.UUID) error {
	if from == to {
		return state.ErrSelfFriend
	}
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	m.friendMu.Lock()
	defer m.friendMu.Unlock()

	if _, ok := m.reg.get(from); !ok {
		return state.ErrNotRegistered
	}
	if _, ok := m.reg.get(to); !ok {
		return state.ErrUserNotFound
	}
	if m.graph.areFriends(from, to) {
		return state.ErrAlreadyFriends
	}
	m.graph.addPending(from, to)

	m.logger.Debug("Friend request recorded", slog.String("from", from.String()), slog.String("to", to.String()))
	return nil
}

func (m *InMemoryManager) AcceptFriend(accepter, requester uuid.UUID) error {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	m.friendMu.Lock()
	defer m.friendMu.Unlock()

	if !m.graph.hasPending(requester, accepter) {
		return state.ErrInvalidRequest
	}
	if _, ok := m.reg.get(requester); !ok {
		m.graph.removePending(requester, accepter)
		return state.ErrUserNotFound
	}

	m.graph.link(accepter, requester)
	m.graph.removePending(requester, accepter)
	// a crossed request in the other direction is settled by the same edge.
	m.graph.removePending(accepter, requester)

	m.logger.Debug("Friendship created", slog.String("a", accepter.String()), slog.String("b", requester.String()))
	return nil
}

func (m *InMemoryManager) RejectFriend(rejecter, requester uuid.UUID) error {
	m.friendMu.Lock()
	defer m.friendMu.Unlock()

	if !m.graph.hasPending(requester, rejecter) {
		return state.ErrInvalidRequest
	}
	m.graph.removePending(requester, rejecter)

	m.logger.Debug("Friend request rejected", slog.String("rejecter", rejecter.String()), slog.String("requester", requester.String()))
	return nil
}

func (m *InMemoryManager) RemoveFriend(a, b uuid.UUID) error {
	m.friendMu.Lock()
	defer m.friendMu.Unlock()

	if !m.graph.areFriends(a, b) {
		return state.ErrNotFriends
	}
	m.graph.unlink(a, b)

	m.logger.Debug("Friendship removed", slog.String("a", a.String()), slog.String("b", b.String()))
	return nil
}

func (m *InMemoryManager) AreFriends(a, b uuid.UUID) bool {
	m.friendMu.RLock()
	defer m.friendMu.RUnlock()
	return m.graph.areFriends(a, b)
}

func (m *InMemoryManager) FriendIDs(connID uuid.UUID) []uuid.UUID {
	m.friendMu.RLock()
	defer m.friendMu.RUnlock()
	return m.graph.friendIDs(connID)
}

func (m *InMemoryManager) PendingRequests(connID uuid.UUID) []uuid.UUID {
	m.friendMu.RLock()
	defer m.friendMu.RUnlock()
	return m.graph.pendingFor(connID)
}

// ListFriends composes the graph query with presence; offline friends are omitted.
func (m *InMemoryManager) ListFriends(connID uuid.UUID) []state.Presence {
	friends := m.onlinePresences(m.FriendIDs(connID))
	sort.Slice(friends, func(i, j int) bool {
		if friends[i].DisplayName != friends[j].DisplayName {
			return friends[i].DisplayName < friends[j].DisplayName
		}
		return friends[i].ID.String() < friends[j].ID.String()
	})
	return friends
}

func (m *InMemoryManager) ListPendingRequests(connID uuid.UUID) []state.Presence {
	return m.onlinePresences(m.PendingRequests(connID))
}

func (m *InMemoryManager) onlinePresences(ids []uuid.UUID) []state.Presence {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.reg.presences(ids)
}

func (m *InMemoryManager) Stats() state.Stats {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()
	m.friendMu.RLock()
	defer m.friendMu.RUnlock()

	return state.Stats{
		Connections: len(m.reg.conns),
		Rooms:       m.rooms.count(),
		Friendships: m.graph.edgeCount(),
		Pending:     m.graph.pendingCount(),
	}
}
