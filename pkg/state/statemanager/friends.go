package statemanager

import (
	"sort"

	"github.com/google/uuid"
)

type idSet map[uuid.UUID]struct{}

// graph holds symmetric friend edges and directed pending requests.
// It is not safe for concurrent use; InMemoryManager guards it with friendMu.
type graph struct {
	friends map[uuid.UUID]idSet
	// target -> requester -> request sequence number.
	incoming map[uuid.UUID]map[uuid.UUID]uint64
	// requester -> targets, the reverse of incoming.
	outgoing map[uuid.UUID]idSet
	seq      uint64
}

func newGraph() *graph {
	return &graph{
		friends:  make(map[uuid.UUID]idSet),
		incoming: make(map[uuid.UUID]map[uuid.UUID]uint64),
		outgoing: make(map[uuid.UUID]idSet),
	}
}

// link adds the edge in both directions.
func (g *graph) link(a, b uuid.UUID) {
	if a == b {
		return
	}
	g.addDirected(a, b)
	g.addDirected(b, a)
}

func (g *graph) addDirected(from, to uuid.UUID) {
	set, ok := g.friends[from]
	if !ok {
		set = make(idSet)
		g.friends[from] = set
	}
	set[to] = struct{}{}
}

// unlink removes the edge in both directions.
func (g *graph) unlink(a, b uuid.UUID) {
	g.removeDirected(a, b)
	g.removeDirected(b, a)
}

func (g *graph) removeDirected(from, to uuid.UUID) {
	set, ok := g.friends[from]
	if !ok {
		return
	}
	delete(set, to)
	if len(set) == 0 {
		delete(g.friends, from)
	}
}

func (g *graph) areFriends(a, b uuid.UUID) bool {
	_, ok := g.friends[a][b]
	return ok
}

func (g *graph) friendIDs(connID uuid.UUID) []uuid.UUID {
	set := g.friends[connID]
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// addPending records requester -> target. Re-adding keeps the original position.
func (g *graph) addPending(requester, target uuid.UUID) {
	reqs, ok := g.incoming[target]
	if !ok {
		reqs = make(map[uuid.UUID]uint64)
		g.incoming[target] = reqs
	}
	if _, exists := reqs[requester]; !exists {
		g.seq++
		reqs[requester] = g.seq
	}
	out, ok := g.outgoing[requester]
	if !ok {
		out = make(idSet)
		g.outgoing[requester] = out
	}
	out[target] = struct{}{}
}

func (g *graph) hasPending(requester, target uuid.UUID) bool {
	_, ok := g.incoming[target][requester]
	return ok
}

func (g *graph) removePending(requester, target uuid.UUID) {
	if reqs, ok := g.incoming[target]; ok {
		delete(reqs, requester)
		if len(reqs) == 0 {
			delete(g.incoming, target)
		}
	}
	if out, ok := g.outgoing[requester]; ok {
		delete(out, target)
		if len(out) == 0 {
			delete(g.outgoing, requester)
		}
	}
}

// pendingFor lists requesters waiting on target, oldest first.
func (g *graph) pendingFor(target uuid.UUID) []uuid.UUID {
	reqs := g.incoming[target]
	ids := make([]uuid.UUID, 0, len(reqs))
	for id := range reqs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return reqs[ids[i]] < reqs[ids[j]]
	})
	return ids
}

// purge drops every edge and pending request that involves connID.
func (g *graph) purge(connID uuid.UUID) {
	for _, friend := range g.friendIDs(connID) {
		g.unlink(connID, friend)
	}
	for requester := range g.incoming[connID] {
		g.removePending(requester, connID)
	}
	for target := range g.outgoing[connID] {
		g.removePending(connID, target)
	}
}

// edgeCount returns the number of symmetric friendships.
func (g *graph) edgeCount() int {
	n := 0
	for _, set := range g.friends {
		n += len(set)
	}
	return n / 2
}

func (g *graph) pendingCount() int {
	n := 0
	for _, reqs := range g.incoming {
		n += len(reqs)
	}
	return n
}
