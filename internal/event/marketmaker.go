package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// MarketMakerRegistered is the control message installing a market-maker
// descriptor: outcome count, read-only per-outcome price snapshot and the
// condition the market trades on. Registered makers are excluded from
// position-ledger effects (their flows surface through trade events).
type MarketMakerRegistered struct {
	Market        common.Address
	ConditionID   common.Hash
	OutcomeCount  int
	OutcomePrices []decimal.Decimal

	TxHash    common.Hash
	Block     uint64
	TxIndex   uint32
	LogIndex  uint32
	Timestamp time.Time
}

func (e *MarketMakerRegistered) IdempotencyKey() string { return LogKey(e.TxHash, e.LogIndex) }
func (e *MarketMakerRegistered) EventType() EventType   { return EventTypeMarketMakerRegistered }
func (e *MarketMakerRegistered) Order() OrderKey {
	return OrderKey{Block: e.Block, TxIndex: e.TxIndex, LogIndex: e.LogIndex}
}
func (e *MarketMakerRegistered) Actor() (common.Address, bool) { return common.Address{}, false }
