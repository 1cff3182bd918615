// Package presence publishes the local user's liveness and judges everyone else's.
package presence

import (
	"time"

	"github.com/matheus3301/chatcore/internal/store"
)

// Record is a presence record as read from a user document.
type Record struct {
	Online   bool
	LastSeen time.Time // zero when never written
}

// FromUser extracts the presence record of u.
func FromUser(u *store.User) Record {
	r := Record{Online: u.Online}
	if u.LastSeen > 0 {
		r.LastSeen = time.UnixMilli(u.LastSeen)
	}
	return r
}

// IsOnline reports whether rec counts as online at now. The record must claim
// online and have been written less than staleAfter ago; a record exactly
// staleAfter old is offline.
func IsOnline(rec Record, now time.Time, staleAfter time.Duration) bool {
	if !rec.Online || rec.LastSeen.IsZero() {
		return false
	}
	return now.Sub(rec.LastSeen) < staleAfter
}

// Evaluator binds IsOnline to a threshold and clock.
type Evaluator struct {
	StaleAfter time.Duration
	Now        func() time.Time
}

func (e Evaluator) Online(rec Record) bool {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	return IsOnline(rec, now(), e.StaleAfter)
}
