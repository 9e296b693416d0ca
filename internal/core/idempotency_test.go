package core_test

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"OutcomeLedger/internal/core"
	"OutcomeLedger/internal/event"
)

// ============================================================================
// Test: AppliedChecker
// ============================================================================

func TestAppliedChecker_MarkThenCheck(t *testing.T) {
	checker := core.NewAppliedChecker(16, nil)

	if checker.WasApplied(event.EventTypeTrade, "0xabc") {
		t.Error("fresh key reported as applied")
	}
	checker.MarkApplied(event.EventTypeTrade, "0xabc")
	if !checker.WasApplied(event.EventTypeTrade, "0xabc") {
		t.Error("marked key not reported as applied")
	}

	// Same key under a different event type is a distinct identity.
	if checker.WasApplied(event.EventTypePositionSplit, "0xabc") {
		t.Error("key leaked across event types")
	}
}

func TestAppliedChecker_LRUEviction(t *testing.T) {
	checker := core.NewAppliedChecker(2, nil)
	checker.MarkApplied(event.EventTypeTrade, "k1")
	checker.MarkApplied(event.EventTypeTrade, "k2")
	checker.MarkApplied(event.EventTypeTrade, "k3")

	// k1 was evicted and there is no durable tier to fall back on.
	if checker.WasApplied(event.EventTypeTrade, "k1") {
		t.Error("evicted key still reported as applied")
	}
	if !checker.WasApplied(event.EventTypeTrade, "k3") {
		t.Error("recent key lost")
	}
}

func TestAppliedChecker_Warm(t *testing.T) {
	checker := core.NewAppliedChecker(16, nil)
	checker.Warm([]string{"Trade:0xaaa", "Trade:0xbbb"})

	if !checker.WasApplied(event.EventTypeTrade, "0xaaa") {
		t.Error("warmed key not reported as applied")
	}
	lru, _ := checker.Stats().Replays(event.EventTypeTrade)
	if lru != 1 {
		t.Errorf("lru replays: got %d, want 1", lru)
	}
}

type failingDBChecker struct{}

func (failingDBChecker) WasApplied(event.EventType, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestAppliedChecker_DBErrorTreatedAsFresh(t *testing.T) {
	checker := core.NewAppliedChecker(16, failingDBChecker{})

	if checker.WasApplied(event.EventTypeTrade, "0xabc") {
		t.Error("lookup failure reported the key as applied")
	}
	if got := checker.Stats().Tier2Errors(); got != 1 {
		t.Errorf("tier2 errors: got %d, want 1", got)
	}
}

type recordingDBChecker struct {
	hit   bool
	calls int
}

func (c *recordingDBChecker) WasApplied(event.EventType, string) (bool, error) {
	c.calls++
	return c.hit, nil
}

func TestAppliedChecker_StoreHitPromotesToLRU(t *testing.T) {
	db := &recordingDBChecker{hit: true}
	checker := core.NewAppliedChecker(16, db)

	if !checker.WasApplied(event.EventTypeTrade, "0xabc") {
		t.Fatal("store hit not reported")
	}
	if !checker.WasApplied(event.EventTypeTrade, "0xabc") {
		t.Fatal("promoted key not reported")
	}
	if db.calls != 1 {
		t.Errorf("db lookups: got %d, want 1 (second check must hit the LRU)", db.calls)
	}

	lru, store := checker.Stats().Replays(event.EventTypeTrade)
	if store != 1 || lru != 1 {
		t.Errorf("replays: lru=%d store=%d, want 1/1", lru, store)
	}
}

// ============================================================================
// Test: OrderValidator
// ============================================================================

func TestOrderValidator_MonotoneFeed(t *testing.T) {
	v := core.NewOrderValidator(zerolog.Nop())

	if v.Observe(event.OrderKey{Block: 10}) {
		t.Error("first observation reported as regression")
	}
	if v.Observe(event.OrderKey{Block: 10, LogIndex: 1}) {
		t.Error("forward movement reported as regression")
	}
	if v.Regressions() != 0 {
		t.Errorf("regressions: got %d, want 0", v.Regressions())
	}
}

func TestOrderValidator_RegressionDoesNotRewind(t *testing.T) {
	v := core.NewOrderValidator(zerolog.Nop())
	v.Observe(event.OrderKey{Block: 100, TxIndex: 2})

	if !v.Observe(event.OrderKey{Block: 100, TxIndex: 1}) {
		t.Error("regressed key not reported")
	}
	if v.Regressions() != 1 {
		t.Errorf("regressions: got %d, want 1", v.Regressions())
	}
	last, ok := v.Last()
	if !ok || last.Block != 100 || last.TxIndex != 2 {
		t.Errorf("last: got %s, want 100:2:0", last)
	}
}

func TestOrderValidator_EqualKeyIsNotRegression(t *testing.T) {
	v := core.NewOrderValidator(zerolog.Nop())
	key := event.OrderKey{Block: 5, TxIndex: 1, LogIndex: 2}
	v.Observe(key)
	if v.Observe(key) {
		t.Error("equal key reported as regression")
	}
}
