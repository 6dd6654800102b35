package datastore

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// EventLimiter caps how many change events are delivered per one-second window.
// Events beyond the cap are dropped; a limit of zero or less disables the cap.
type EventLimiter struct {
	clock clockwork.Clock
	limit int

	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// NewEventLimiter creates a limiter allowing perSecond events per window
func NewEventLimiter(clock clockwork.Clock, perSecond int) *EventLimiter {
	return &EventLimiter{clock: clock, limit: perSecond}
}

// Allow reports whether one more event fits in the current window
func (l *EventLimiter) Allow() bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= time.Second {
		l.windowStart = now
		l.count = 0
	}
	if l.count >= l.limit {
		return false
	}
	l.count++
	return true
}
