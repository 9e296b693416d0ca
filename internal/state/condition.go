package state

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ConditionState tracks the condition lifecycle
type ConditionState int32

const (
	ConditionStateOpen ConditionState = iota
	ConditionStateResolved
)

func (cs ConditionState) String() string {
	if cs == ConditionStateResolved {
		return "Resolved"
	}
	return "Open"
}

// Condition is one prepared market question. Created on preparation,
// mutated exactly once on resolution, never deleted.
type Condition struct {
	ID               common.Hash
	Oracle           common.Address
	QuestionID       common.Hash
	OutcomeSlotCount int

	// Append-only set of market makers trading on this condition
	MarketMakers []common.Address

	State ConditionState

	// Set on resolution
	PayoutNumerators    []*big.Int
	PayoutDenominator   *big.Int
	PayoutFractions     []decimal.Decimal
	ResolutionTimestamp time.Time
	ResolutionTx        common.Hash

	Version int64
}

// Resolved reports whether the payout vector has been set.
func (c *Condition) Resolved() bool {
	return c.State == ConditionStateResolved
}

// AttachMarketMaker appends the market maker to the condition's set.
// Returns false if it was already attached (the set is append-only and
// duplicate-free).
func (c *Condition) AttachMarketMaker(market common.Address) bool {
	for _, existing := range c.MarketMakers {
		if existing == market {
			return false
		}
	}
	c.MarketMakers = append(c.MarketMakers, market)
	c.Version++
	return true
}

// NegRiskPosition is an auxiliary per-outcome record pre-registered for
// conditions prepared by the risk-transfer oracle. It carries the derived
// position identifier used by the parallel accounting scheme for
// binary-converted markets and is otherwise inert.
type NegRiskPosition struct {
	ID          common.Hash
	ConditionID common.Hash
	Outcome     int
}
