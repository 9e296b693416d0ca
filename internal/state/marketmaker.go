package state

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// MarketMaker is the descriptor for an AMM market: outcome count, the
// condition it trades on and a read-only per-outcome price snapshot. The
// snapshot is consumed as-is when valuing refunded liquidity legs; this
// ledger never computes AMM pricing itself.
type MarketMaker struct {
	Address       common.Address
	ConditionID   common.Hash
	OutcomeCount  int
	OutcomePrices []decimal.Decimal
	RegisteredAt  time.Time
	Version       int64
}

// MarketMakerRegistry tracks market-maker descriptors.
// Not thread-safe; only accessed from the single-threaded dispatch loop.
type MarketMakerRegistry struct {
	makers map[common.Address]*MarketMaker
}

func NewMarketMakerRegistry() *MarketMakerRegistry {
	return &MarketMakerRegistry{
		makers: make(map[common.Address]*MarketMaker),
	}
}

// Register installs or refreshes a descriptor. Re-registration updates the
// price snapshot in place.
func (r *MarketMakerRegistry) Register(
	address common.Address,
	conditionID common.Hash,
	outcomeCount int,
	prices []decimal.Decimal,
	ts time.Time,
) *MarketMaker {
	if existing, ok := r.makers[address]; ok {
		existing.OutcomePrices = prices
		existing.Version++
		return existing
	}

	mm := &MarketMaker{
		Address:       address,
		ConditionID:   conditionID,
		OutcomeCount:  outcomeCount,
		OutcomePrices: prices,
		RegisteredAt:  ts,
	}
	r.makers[address] = mm
	return mm
}

// Lookup returns the descriptor or "not found".
func (r *MarketMakerRegistry) Lookup(address common.Address) (*MarketMaker, bool) {
	mm, ok := r.makers[address]
	return mm, ok
}

// IsMarketMaker reports whether the address is a tracked market maker.
// Used by the dispatch layer's actor filter.
func (r *MarketMakerRegistry) IsMarketMaker(address common.Address) bool {
	_, ok := r.makers[address]
	return ok
}

// Restore installs a descriptor directly (warm restore).
func (r *MarketMakerRegistry) Restore(mm *MarketMaker) {
	r.makers[mm.Address] = mm
}

// Len returns the number of registered market makers.
func (r *MarketMakerRegistry) Len() int {
	return len(r.makers)
}
