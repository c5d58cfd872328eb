package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type attempts struct {
	failures    int
	lockedUntil time.Time
}

// limiter counts consecutive failed authentications per account. Only a
// success clears an account's count; lock, autolock and logout leave it.
// Once the count reaches max, every further failure restarts the cooldown.
type limiter struct {
	mu       sync.Mutex
	maxFails int
	cooldown time.Duration
	byUser   map[uuid.UUID]*attempts
}

func newLimiter(maxFails int, cooldown time.Duration) *limiter {
	return &limiter{maxFails: maxFails, cooldown: cooldown, byUser: make(map[uuid.UUID]*attempts)}
}

// blocked returns the remaining cooldown for id, or zero.
func (l *limiter) blocked(id uuid.UUID, now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.byUser[id]
	if !ok || !now.Before(a.lockedUntil) {
		return 0
	}
	return a.lockedUntil.Sub(now)
}

// fail records a failure and reports whether it started a cooldown.
func (l *limiter) fail(id uuid.UUID, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.byUser[id]
	if !ok {
		a = &attempts{}
		l.byUser[id] = a
	}
	a.failures++
	if a.failures >= l.maxFails {
		a.lockedUntil = now.Add(l.cooldown)
		return true
	}
	return false
}

func (l *limiter) succeed(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byUser, id)
}

func (l *limiter) failures(id uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.byUser[id]; ok {
		return a.failures
	}
	return 0
}
