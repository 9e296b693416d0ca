package event

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LiquidityAdded reports a funder adding liquidity to a market maker. The
// per-outcome amounts are what the pool kept; legs above the smallest one
// are refunded to the funder as outcome tokens.
type LiquidityAdded struct {
	Market       common.Address
	Funder       common.Address
	AmountsAdded []*big.Int
	SharesMinted *big.Int

	TxHash    common.Hash
	Block     uint64
	TxIndex   uint32
	LogIndex  uint32
	Timestamp time.Time
}

func (e *LiquidityAdded) IdempotencyKey() string { return LogKey(e.TxHash, e.LogIndex) }
func (e *LiquidityAdded) EventType() EventType   { return EventTypeLiquidityAdded }
func (e *LiquidityAdded) Order() OrderKey {
	return OrderKey{Block: e.Block, TxIndex: e.TxIndex, LogIndex: e.LogIndex}
}
func (e *LiquidityAdded) Actor() (common.Address, bool) { return e.Funder, true }

// LiquidityRemoved reports a funder burning pool shares for the per-outcome
// token amounts they withdraw.
type LiquidityRemoved struct {
	Market         common.Address
	Funder         common.Address
	AmountsRemoved []*big.Int
	SharesBurnt    *big.Int

	TxHash    common.Hash
	Block     uint64
	TxIndex   uint32
	LogIndex  uint32
	Timestamp time.Time
}

func (e *LiquidityRemoved) IdempotencyKey() string { return LogKey(e.TxHash, e.LogIndex) }
func (e *LiquidityRemoved) EventType() EventType   { return EventTypeLiquidityRemoved }
func (e *LiquidityRemoved) Order() OrderKey {
	return OrderKey{Block: e.Block, TxIndex: e.TxIndex, LogIndex: e.LogIndex}
}
func (e *LiquidityRemoved) Actor() (common.Address, bool) { return e.Funder, true }
