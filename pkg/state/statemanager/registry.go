package statemanager

import (
	"time"

	"github.com/a-essam23/go-signal/pkg/state"
	"github.com/google/uuid"
)

// registry holds presence records and the display-name index.
// It is not safe for concurrent use; InMemoryManager guards it with connMu.
type registry struct {
	conns map[uuid.UUID]*state.Connection
	// display name -> holders in claim order. Only connections that joined are indexed.
	names       map[string][]uuid.UUID
	placeholder string
}

func newRegistry(placeholder string) *registry {
	return &registry{
		conns:       make(map[uuid.UUID]*state.Connection),
		names:       make(map[string][]uuid.UUID),
		placeholder: placeholder,
	}
}

func (r *registry) add(connID uuid.UUID, ipAddr string, now time.Time) (*state.Connection, bool) {
	if _, exists := r.conns[connID]; exists {
		return nil, false
	}
	c := &state.Connection{
		ID:          connID,
		IPAddress:   ipAddr,
		DisplayName: r.placeholder,
		CreatedAt:   now,
	}
	r.conns[connID] = c
	return c, true
}

func (r *registry) get(connID uuid.UUID) (*state.Connection, bool) {
	c, ok := r.conns[connID]
	return c, ok
}

func (r *registry) remove(connID uuid.UUID) (*state.Connection, bool) {
	c, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	if c.HasIdentity() {
		r.unindex(c.DisplayName, connID)
	}
	delete(r.conns, connID)
	return c, true
}

// setIdentity overwrites the display name and room of c, keeping the name index in sync.
func (r *registry) setIdentity(c *state.Connection, displayName, roomID string, now time.Time) {
	if !c.HasIdentity() {
		r.names[displayName] = append(r.names[displayName], c.ID)
	} else if c.DisplayName != displayName {
		r.unindex(c.DisplayName, c.ID)
		r.names[displayName] = append(r.names[displayName], c.ID)
	}
	c.DisplayName = displayName
	c.RoomID = roomID
	c.JoinedAt = now
}

func (r *registry) unindex(displayName string, connID uuid.UUID) {
	holders := r.names[displayName]
	for i, id := range holders {
		if id == connID {
			holders = append(holders[:i:i], holders[i+1:]...)
			break
		}
	}
	if len(holders) == 0 {
		delete(r.names, displayName)
		return
	}
	r.names[displayName] = holders
}

func (r *registry) lookup(displayName string) (*state.Connection, bool) {
	holders := r.names[displayName]
	if len(holders) == 0 {
		return nil, false
	}
	return r.get(holders[0])
}

func (r *registry) nameHeldByOther(displayName string, connID uuid.UUID) bool {
	for _, id := range r.names[displayName] {
		if id != connID {
			return true
		}
	}
	return false
}

func (r *registry) presence(connID uuid.UUID) (state.Presence, bool) {
	c, ok := r.conns[connID]
	if !ok {
		return state.Presence{}, false
	}
	return state.Presence{ID: c.ID, DisplayName: c.DisplayName}, true
}

// presences resolves ids to presences, silently skipping ids that are no longer registered.
func (r *registry) presences(ids []uuid.UUID) []state.Presence {
	out := make([]state.Presence, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.presence(id); ok {
			out = append(out, p)
		}
	}
	return out
}
