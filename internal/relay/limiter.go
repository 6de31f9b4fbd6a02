package relay

import (
	"sync"
	"time"

	"github.com/a-essam23/go-signal/pkg/config"
	"github.com/google/uuid"
)

type window struct {
	start    time.Time
	requests int
}

// limiter enforces a fixed-window event budget per connection. Windows are
// only opened for connections alive reports as registered, so an event racing
// with disconnect cannot leave a window behind after forget.
type limiter struct {
	rate  config.Rate
	now   func() time.Time
	alive func(uuid.UUID) bool

	mu      sync.Mutex
	windows map[uuid.UUID]*window
}

func newLimiter(rate config.Rate, now func() time.Time, alive func(uuid.UUID) bool) *limiter {
	return &limiter{
		rate:    rate,
		now:     now,
		alive:   alive,
		windows: make(map[uuid.UUID]*window),
	}
}

func (l *limiter) allow(connID uuid.UUID) bool {
	if l.rate.Unlimited() {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.windows[connID]
	if !found && !l.alive(connID) {
		// departed; the handler will find nothing to act on.
		return true
	}
	if !found || now.Sub(w.start) >= l.rate.Window {
		// First request in the window.
		l.windows[connID] = &window{start: now, requests: 1}
		return true
	}
	if w.requests < l.rate.Limit {
		w.requests++
		return true
	}
	return false
}

// forget drops the window of a connection. Call it after the connection is
// deregistered.
func (l *limiter) forget(connID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, connID)
}

func (l *limiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
