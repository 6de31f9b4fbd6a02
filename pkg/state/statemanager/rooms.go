package statemanager

import (
	"sort"

	"github.com/google/uuid"
)

type roomRecord struct {
	id string
	// member -> join sequence number, used to list members in join order.
	members map[uuid.UUID]uint64
}

// directory maps room ids to member sets. A room exists iff it has members.
// It is not safe for concurrent use; InMemoryManager guards it with roomMu.
type directory struct {
	rooms map[string]*roomRecord
	seq   uint64
}

func newDirectory() *directory {
	return &directory{rooms: make(map[string]*roomRecord)}
}

// join adds connID to roomID, creating the room when absent. Reports whether connID was newly added.
func (d *directory) join(roomID string, connID uuid.UUID) bool {
	room, ok := d.rooms[roomID]
	if !ok {
		room = &roomRecord{id: roomID, members: make(map[uuid.UUID]uint64)}
		d.rooms[roomID] = room
	}
	if _, member := room.members[connID]; member {
		return false
	}
	d.seq++
	room.members[connID] = d.seq
	return true
}

// leave removes connID from roomID and deletes the room if it became empty.
func (d *directory) leave(roomID string, connID uuid.UUID) (removed, closed bool) {
	room, ok := d.rooms[roomID]
	if !ok {
		return false, false
	}
	if _, member := room.members[connID]; !member {
		return false, false
	}
	delete(room.members, connID)
	if len(room.members) == 0 {
		delete(d.rooms, roomID)
		return true, true
	}
	return true, false
}

// memberIDs lists members of roomID in join order, excluding the given ids.
func (d *directory) memberIDs(roomID string, exclude ...uuid.UUID) []uuid.UUID {
	room, ok := d.rooms[roomID]
	if !ok {
		return []uuid.UUID{}
	}
	ids := make([]uuid.UUID, 0, len(room.members))
outer:
	for id := range room.members {
		for _, ex := range exclude {
			if id == ex {
				continue outer
			}
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return room.members[ids[i]] < room.members[ids[j]]
	})
	return ids
}

func (d *directory) exists(roomID string) bool {
	_, ok := d.rooms[roomID]
	return ok
}

func (d *directory) count() int {
	return len(d.rooms)
}
