package app

import (
	"sync"
	"time"

	"github.com/huddlehq/huddle/internal/domain"
)

// JoinLimiter puts a sliding-window cap on join requests per connection.
// Pending lobby requests have no expiry, so this is the only guard against
// a client flooding the host with admission prompts.
type JoinLimiter struct {
	mu       sync.Mutex
	history  map[domain.ConnID][]time.Time
	limit    int
	interval time.Duration
}

func NewJoinLimiter(limit int, interval time.Duration) *JoinLimiter {
	return &JoinLimiter{
		history:  make(map[domain.ConnID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (l *JoinLimiter) Allow(id domain.ConnID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-l.interval)

	attempts := l.history[id]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= l.limit {
		l.history[id] = fresh
		return false
	}

	fresh = append(fresh, now)
	l.history[id] = fresh
	return true
}

// Forget drops a connection's window on disconnect.
func (l *JoinLimiter) Forget(id domain.ConnID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.history, id)
}
