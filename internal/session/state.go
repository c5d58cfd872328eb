package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// State of a session.
type State int

const (
	Locked State = iota
	Unlocked
)

func (s State) String() string {
	if s == Unlocked {
		return "unlocked"
	}
	return "locked"
}

// Event names a transition reported to the Observer.
type Event string

const (
	EventUnlocked     Event = "unlocked"
	EventUnlockFailed Event = "unlock_failed"
	EventLockedOut    Event = "locked_out"
	EventLocked       Event = "locked"
	EventAutolocked   Event = "autolocked"
	EventLoggedOut    Event = "logged_out"
)

// Observer receives transitions after the manager's lock is released, so it
// may call back into the Manager.
type Observer func(ctx context.Context, ev Event, userID uuid.UUID)

// Info is a read-only snapshot of the current session.
type Info struct {
	UserID         uuid.UUID
	State          State
	UnlockedAt     time.Time
	LastActivityAt time.Time
}

type fired struct {
	ev     Event
	userID uuid.UUID
}

// notes collects transitions made under the mutex for delivery afterwards.
type notes []fired

func (n *notes) add(ev Event, userID uuid.UUID) {
	*n = append(*n, fired{ev: ev, userID: userID})
}
