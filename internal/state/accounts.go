package state

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AccountTracker is the "seen accounts" set. The trader-count aggregate is
// incremented only when MarkSeen reports a first sighting, which makes the
// increment idempotent per account.
// Not thread-safe; only accessed from the single-threaded dispatch loop.
type AccountTracker struct {
	seen map[common.Address]time.Time
}

func NewAccountTracker() *AccountTracker {
	return &AccountTracker{
		seen: make(map[common.Address]time.Time),
	}
}

// MarkSeen upserts the account and returns true on first sighting.
func (t *AccountTracker) MarkSeen(account common.Address, ts time.Time) bool {
	if _, ok := t.seen[account]; ok {
		return false
	}
	t.seen[account] = ts
	return true
}

// Seen reports whether the account has been observed.
func (t *AccountTracker) Seen(account common.Address) bool {
	_, ok := t.seen[account]
	return ok
}

// FirstSeen returns when the account was first observed.
func (t *AccountTracker) FirstSeen(account common.Address) (time.Time, bool) {
	ts, ok := t.seen[account]
	return ts, ok
}

// Restore installs a sighting directly (warm restore).
func (t *AccountTracker) Restore(account common.Address, ts time.Time) {
	t.seen[account] = ts
}

// Len returns the number of distinct accounts seen.
func (t *AccountTracker) Len() int {
	return len(t.seen)
}
