package core

import (
	"github.com/rs/zerolog"

	"OutcomeLedger/internal/event"
)

// OrderValidator watches the (block, txIndex, logIndex) ordering of the
// feed. The feed is expected to be monotone; a regression means the
// upstream indexer replayed a range (backfill or reorg recovery).
// Regressions are tolerated, never rejected: the applied-key gate makes
// replays harmless, this only keeps the anomaly visible.
type OrderValidator struct {
	last    event.OrderKey
	hasLast bool

	regressions int64
	log         zerolog.Logger
}

func NewOrderValidator(log zerolog.Logger) *OrderValidator {
	return &OrderValidator{log: log}
}

// Observe records the event's position and reports whether it regressed
// relative to the previous event.
func (v *OrderValidator) Observe(key event.OrderKey) bool {
	if !v.hasLast {
		v.last = key
		v.hasLast = true
		return false
	}

	regressed := key.Cmp(v.last) < 0
	if regressed {
		v.regressions++
		v.log.Debug().
			Str("order", key.String()).
			Str("last", v.last.String()).
			Msg("order regression, feed replaying a range")
	} else {
		v.last = key
	}
	return regressed
}

// Last returns the highest order key observed so far.
func (v *OrderValidator) Last() (event.OrderKey, bool) {
	return v.last, v.hasLast
}

// Regressions returns the number of regressed events seen.
func (v *OrderValidator) Regressions() int64 {
	return v.regressions
}
