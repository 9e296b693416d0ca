package event

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TradeType represents trade direction from the trader's side.
type TradeType int32

const (
	TradeTypeBuy TradeType = iota
	TradeTypeSell
)

func (t TradeType) String() string {
	if t == TradeTypeSell {
		return "Sell"
	}
	return "Buy"
}

// Trade represents an AMM trade against a market maker. One trade occurs
// per transaction, so the transaction hash alone is the idempotency key
// and doubles as the reference to the originating transaction context.
type Trade struct {
	TxHash           common.Hash
	Type             TradeType
	Account          common.Address
	Market           common.Address
	OutcomeIndex     int
	TokenAmount      *big.Int
	CollateralAmount *big.Int
	FeeAmount        *big.Int

	Block     uint64
	TxIndex   uint32
	LogIndex  uint32
	Timestamp time.Time
}

func (e *Trade) IdempotencyKey() string { return e.TxHash.Hex() }
func (e *Trade) EventType() EventType   { return EventTypeTrade }
func (e *Trade) Order() OrderKey {
	return OrderKey{Block: e.Block, TxIndex: e.TxIndex, LogIndex: e.LogIndex}
}
func (e *Trade) Actor() (common.Address, bool) { return e.Account, true }
