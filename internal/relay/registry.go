package relay

import (
	"sync"
)

// simple, testable functions that receive a Cargo.
type HandlerFunc func(c *Cargo) error

type route struct {
	handler HandlerFunc
	// event used to report failures to the sender.
	errorEvent string
}

// Registry maps inbound event names to handlers.
type Registry struct {
	mu     sync.RWMutex
	routes map[string]route
}

func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]route)}
}

// Register adds a handler whose failures are reported as errorEvent.
func (r *Registry) Register(event string, fn HandlerFunc, errorEvent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.routes[event]; exists {
		panic("handler already registered: " + event)
	}
	r.routes[event] = route{handler: fn, errorEvent: errorEvent}
}

func (r *Registry) lookup(event string) (route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.routes[event]
	return rt, ok
}

// Len returns the number of registered events.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

func (r *Registry) registerCore() {
	r.Register(EventJoinRoom, handleJoinRoom, EventError)
	r.Register(EventLeaveRoom, handleLeaveRoom, EventError)
	r.Register(EventGetOnlineUsers, handleGetOnlineUsers, EventError)

	r.Register(EventOffer, forwardSignal("offer"), EventError)
	r.Register(EventAnswer, forwardSignal("answer"), EventError)
	r.Register(EventICECandidate, forwardSignal("candidate"), EventError)

	r.Register(EventSendMessage, handleSendMessage, EventError)

	r.Register(EventAddFriend, handleAddFriend, EventFriendError)
	r.Register(EventAcceptFriend, handleAcceptFriend, EventFriendError)
	r.Register(EventRejectFriend, handleRejectFriend, EventFriendError)
	r.Register(EventRemoveFriend, handleRemoveFriend, EventFriendError)
	r.Register(EventGetFriends, handleGetFriends, EventFriendError)
	r.Register(EventGetFriendRequests, handleGetFriendRequests, EventFriendError)
}
