package state

import (
	"OutcomeLedger/internal/event"
	fpmath "OutcomeLedger/internal/math"
	"math/big"

	"github.com/shopspring/decimal"
)

// GlobalStats is the single protocol-wide aggregate record. Created once,
// mutated by every operation that moves value, never deleted. It is an
// explicit handle threaded through the dispatch layer, never an ambient
// package global.
type GlobalStats struct {
	ConditionsPrepared int64
	ConditionsOpen     int64
	ConditionsResolved int64

	TraderCount int64
	TradeCount  int64
	BuyCount    int64
	SellCount   int64

	CollateralVolume       *big.Int
	ScaledCollateralVolume decimal.Decimal
	CollateralFees         *big.Int
	ScaledCollateralFees   decimal.Decimal

	CollateralBuyVolume        *big.Int
	ScaledCollateralBuyVolume  decimal.Decimal
	CollateralSellVolume       *big.Int
	ScaledCollateralSellVolume decimal.Decimal

	// Heuristic estimate of collateral locked in outstanding outcome
	// tokens, not an exact conservation law.
	OpenInterest *big.Int

	Version int64
}

// NewGlobalStats creates a zeroed aggregate record.
func NewGlobalStats() *GlobalStats {
	return &GlobalStats{
		CollateralVolume:     new(big.Int),
		CollateralFees:       new(big.Int),
		CollateralBuyVolume:  new(big.Int),
		CollateralSellVolume: new(big.Int),
		OpenInterest:         new(big.Int),
	}
}

// StatsTracker centralizes every GlobalStats mutation. collateralDecimals
// is the collateral token's scale used for the human-scaled mirrors of the
// raw integer totals.
type StatsTracker struct {
	stats              *GlobalStats
	collateralDecimals int32
}

func NewStatsTracker(collateralDecimals int32) *StatsTracker {
	return &StatsTracker{
		stats:              NewGlobalStats(),
		collateralDecimals: collateralDecimals,
	}
}

// Stats returns the aggregate record handle.
func (st *StatsTracker) Stats() *GlobalStats {
	return st.stats
}

// Restore installs a record directly (warm restore).
func (st *StatsTracker) Restore(stats *GlobalStats) {
	st.stats = stats
}

// ConditionPrepared moves the lifecycle counters for a new Open condition.
func (st *StatsTracker) ConditionPrepared() {
	st.stats.ConditionsPrepared = fpmath.SaturatingAdd(st.stats.ConditionsPrepared, 1)
	st.stats.ConditionsOpen = fpmath.SaturatingAdd(st.stats.ConditionsOpen, 1)
	st.stats.Version++
}

// ConditionResolved moves the lifecycle counters for an Open→Resolved
// transition. Re-resolutions do not call this.
func (st *StatsTracker) ConditionResolved() {
	st.stats.ConditionsOpen = fpmath.SaturatingAdd(st.stats.ConditionsOpen, -1)
	st.stats.ConditionsResolved = fpmath.SaturatingAdd(st.stats.ConditionsResolved, 1)
	st.stats.Version++
}

// TraderSeen increments the trader count; callers gate it on the account
// tracker's first-sighting report so the increment stays idempotent.
func (st *StatsTracker) TraderSeen() {
	st.stats.TraderCount = fpmath.SaturatingAdd(st.stats.TraderCount, 1)
	st.stats.Version++
}

// RecordTrade accumulates trade counts, collateral volume and fees, raw
// and human-scaled, split by trade direction.
func (st *StatsTracker) RecordTrade(tradeType event.TradeType, collateralAmount, feeAmount *big.Int) {
	s := st.stats

	s.TradeCount = fpmath.SaturatingAdd(s.TradeCount, 1)

	s.CollateralVolume.Add(s.CollateralVolume, collateralAmount)
	s.ScaledCollateralVolume = fpmath.ScaleToDecimal(s.CollateralVolume, st.collateralDecimals)

	if feeAmount != nil {
		s.CollateralFees.Add(s.CollateralFees, feeAmount)
		s.ScaledCollateralFees = fpmath.ScaleToDecimal(s.CollateralFees, st.collateralDecimals)
	}

	switch tradeType {
	case event.TradeTypeBuy:
		s.BuyCount = fpmath.SaturatingAdd(s.BuyCount, 1)
		s.CollateralBuyVolume.Add(s.CollateralBuyVolume, collateralAmount)
		s.ScaledCollateralBuyVolume = fpmath.ScaleToDecimal(s.CollateralBuyVolume, st.collateralDecimals)
	case event.TradeTypeSell:
		s.SellCount = fpmath.SaturatingAdd(s.SellCount, 1)
		s.CollateralSellVolume.Add(s.CollateralSellVolume, collateralAmount)
		s.ScaledCollateralSellVolume = fpmath.ScaleToDecimal(s.CollateralSellVolume, st.collateralDecimals)
	}

	s.Version++
}

// OpenInterestAdd increases open interest: Buy, Split, LiquidityAdded.
func (st *StatsTracker) OpenInterestAdd(amount *big.Int) {
	st.stats.OpenInterest.Add(st.stats.OpenInterest, amount)
	st.stats.Version++
}

// OpenInterestSub decreases open interest: Sell, Merge, PayoutRedemption.
// The heuristic may drift below zero on inconsistent upstream data; the
// value is kept as-is rather than clamped so the drift stays visible.
func (st *StatsTracker) OpenInterestSub(amount *big.Int) {
	st.stats.OpenInterest.Sub(st.stats.OpenInterest, amount)
	st.stats.Version++
}
