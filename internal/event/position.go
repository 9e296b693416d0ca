package event

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PositionSplit reports collateral (or a parent position) being split into
// per-outcome tokens across a partition of the condition's outcome slots.
type PositionSplit struct {
	Stakeholder        common.Address
	CollateralToken    common.Address
	ParentCollectionID common.Hash
	ConditionID        common.Hash
	Partition          []*big.Int
	Amount             *big.Int

	TxHash    common.Hash
	Block     uint64
	TxIndex   uint32
	LogIndex  uint32
	Timestamp time.Time
}

func (e *PositionSplit) IdempotencyKey() string { return LogKey(e.TxHash, e.LogIndex) }
func (e *PositionSplit) EventType() EventType   { return EventTypePositionSplit }
func (e *PositionSplit) Order() OrderKey {
	return OrderKey{Block: e.Block, TxIndex: e.TxIndex, LogIndex: e.LogIndex}
}
func (e *PositionSplit) Actor() (common.Address, bool) { return e.Stakeholder, true }

// PositionsMerge is the inverse of PositionSplit: per-outcome tokens merged
// back into collateral (or a parent position).
type PositionsMerge struct {
	Stakeholder        common.Address
	CollateralToken    common.Address
	ParentCollectionID common.Hash
	ConditionID        common.Hash
	Partition          []*big.Int
	Amount             *big.Int

	TxHash    common.Hash
	Block     uint64
	TxIndex   uint32
	LogIndex  uint32
	Timestamp time.Time
}

func (e *PositionsMerge) IdempotencyKey() string { return LogKey(e.TxHash, e.LogIndex) }
func (e *PositionsMerge) EventType() EventType   { return EventTypePositionsMerge }
func (e *PositionsMerge) Order() OrderKey {
	return OrderKey{Block: e.Block, TxIndex: e.TxIndex, LogIndex: e.LogIndex}
}
func (e *PositionsMerge) Actor() (common.Address, bool) { return e.Stakeholder, true }

// PayoutRedemption reports outcome tokens of a resolved condition being
// redeemed for collateral. Payout is the protocol-reported total; the
// ledger values each leg from its own net quantity instead.
type PayoutRedemption struct {
	Redeemer           common.Address
	CollateralToken    common.Address
	ParentCollectionID common.Hash
	ConditionID        common.Hash
	IndexSets          []*big.Int
	Payout             *big.Int

	TxHash    common.Hash
	Block     uint64
	TxIndex   uint32
	LogIndex  uint32
	Timestamp time.Time
}

func (e *PayoutRedemption) IdempotencyKey() string { return LogKey(e.TxHash, e.LogIndex) }
func (e *PayoutRedemption) EventType() EventType   { return EventTypePayoutRedemption }
func (e *PayoutRedemption) Order() OrderKey {
	return OrderKey{Block: e.Block, TxIndex: e.TxIndex, LogIndex: e.LogIndex}
}
func (e *PayoutRedemption) Actor() (common.Address, bool) { return e.Redeemer, true }

// PositionsConverted reports a neg-risk conversion: NO-side tokens of the
// selected binary markets exchanged for YES-side tokens of the others plus
// collateral. Recorded as an audit row; the aggregate amount does not map
// deterministically onto per-outcome legs.
type PositionsConverted struct {
	Stakeholder     common.Address
	NegRiskMarketID common.Hash
	IndexSet        *big.Int
	Amount          *big.Int
	QuestionCount   int

	TxHash    common.Hash
	Block     uint64
	TxIndex   uint32
	LogIndex  uint32
	Timestamp time.Time
}

func (e *PositionsConverted) IdempotencyKey() string { return LogKey(e.TxHash, e.LogIndex) }
func (e *PositionsConverted) EventType() EventType   { return EventTypePositionsConverted }
func (e *PositionsConverted) Order() OrderKey {
	return OrderKey{Block: e.Block, TxIndex: e.TxIndex, LogIndex: e.LogIndex}
}
func (e *PositionsConverted) Actor() (common.Address, bool) { return e.Stakeholder, true }
