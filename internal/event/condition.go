package event

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ConditionPrepared announces a new market question prepared by an oracle.
// At most one preparation can occur per transaction, so the transaction
// hash alone is the idempotency key.
type ConditionPrepared struct {
	ConditionID      common.Hash
	Oracle           common.Address
	QuestionID       common.Hash
	OutcomeSlotCount int

	TxHash    common.Hash
	Block     uint64
	TxIndex   uint32
	LogIndex  uint32
	Timestamp time.Time
}

func (e *ConditionPrepared) IdempotencyKey() string { return e.TxHash.Hex() }
func (e *ConditionPrepared) EventType() EventType   { return EventTypeConditionPrepared }
func (e *ConditionPrepared) Order() OrderKey {
	return OrderKey{Block: e.Block, TxIndex: e.TxIndex, LogIndex: e.LogIndex}
}
func (e *ConditionPrepared) Actor() (common.Address, bool) { return common.Address{}, false }

// ConditionResolution reports the oracle's payout vector for a condition.
type ConditionResolution struct {
	ConditionID      common.Hash
	PayoutNumerators []*big.Int

	TxHash    common.Hash
	Block     uint64
	TxIndex   uint32
	LogIndex  uint32
	Timestamp time.Time
}

func (e *ConditionResolution) IdempotencyKey() string { return e.TxHash.Hex() }
func (e *ConditionResolution) EventType() EventType   { return EventTypeConditionResolution }
func (e *ConditionResolution) Order() OrderKey {
	return OrderKey{Block: e.Block, TxIndex: e.TxIndex, LogIndex: e.LogIndex}
}
func (e *ConditionResolution) Actor() (common.Address, bool) { return common.Address{}, false }
