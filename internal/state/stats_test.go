package state_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"OutcomeLedger/internal/event"
	"OutcomeLedger/internal/state"
)

// ============================================================================
// Test: Condition lifecycle counters
// ============================================================================

func TestStats_ConditionLifecycle(t *testing.T) {
	st := state.NewStatsTracker(6)
	st.ConditionPrepared()
	st.ConditionPrepared()
	st.ConditionResolved()

	s := st.Stats()
	if s.ConditionsPrepared != 2 {
		t.Errorf("prepared: got %d, want 2", s.ConditionsPrepared)
	}
	if s.ConditionsOpen != 1 {
		t.Errorf("open: got %d, want 1", s.ConditionsOpen)
	}
	if s.ConditionsResolved != 1 {
		t.Errorf("resolved: got %d, want 1", s.ConditionsResolved)
	}
}

// ============================================================================
// Test: RecordTrade
// ============================================================================

func TestStats_RecordTradeSplitsByDirection(t *testing.T) {
	st := state.NewStatsTracker(6)
	st.RecordTrade(event.TradeTypeBuy, big.NewInt(1_000_000), big.NewInt(10_000))
	st.RecordTrade(event.TradeTypeSell, big.NewInt(500_000), nil)

	s := st.Stats()
	if s.TradeCount != 2 || s.BuyCount != 1 || s.SellCount != 1 {
		t.Errorf("counts: trades=%d buys=%d sells=%d, want 2/1/1", s.TradeCount, s.BuyCount, s.SellCount)
	}
	if s.CollateralVolume.Cmp(big.NewInt(1_500_000)) != 0 {
		t.Errorf("volume: got %s, want 1500000", s.CollateralVolume)
	}
	if s.CollateralBuyVolume.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("buy volume: got %s, want 1000000", s.CollateralBuyVolume)
	}
	if s.CollateralSellVolume.Cmp(big.NewInt(500_000)) != 0 {
		t.Errorf("sell volume: got %s, want 500000", s.CollateralSellVolume)
	}
	if s.CollateralFees.Cmp(big.NewInt(10_000)) != 0 {
		t.Errorf("fees: got %s, want 10000", s.CollateralFees)
	}
	if !s.ScaledCollateralVolume.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("scaled volume: got %s, want 1.5", s.ScaledCollateralVolume)
	}
	if !s.ScaledCollateralFees.Equal(decimal.NewFromFloat(0.01)) {
		t.Errorf("scaled fees: got %s, want 0.01", s.ScaledCollateralFees)
	}
}

// ============================================================================
// Test: Open interest
// ============================================================================

func TestStats_OpenInterestNotClamped(t *testing.T) {
	st := state.NewStatsTracker(6)
	st.OpenInterestAdd(big.NewInt(100))
	st.OpenInterestSub(big.NewInt(150))

	if got := st.Stats().OpenInterest; got.Cmp(big.NewInt(-50)) != 0 {
		t.Errorf("open interest: got %s, want -50 (drift stays visible)", got)
	}
}

// ============================================================================
// Test: Trader counting via AccountTracker
// ============================================================================

func TestAccountTracker_FirstSightingGatesTraderCount(t *testing.T) {
	st := state.NewStatsTracker(6)
	accounts := state.NewAccountTracker()
	trader := common.HexToAddress("0x6666666666666666666666666666666666666666")
	ts := time.Unix(1700000000, 0)

	if accounts.MarkSeen(trader, ts) {
		st.TraderSeen()
	}
	if accounts.MarkSeen(trader, ts.Add(time.Hour)) {
		st.TraderSeen()
	}

	if got := st.Stats().TraderCount; got != 1 {
		t.Errorf("trader count: got %d, want 1", got)
	}
	first, ok := accounts.FirstSeen(trader)
	if !ok || !first.Equal(ts) {
		t.Errorf("first seen: got %s ok=%v, want %s", first, ok, ts)
	}
}
