package event

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeConditionPrepared
	EventTypeConditionResolution
	EventTypePositionSplit
	EventTypePositionsMerge
	EventTypePayoutRedemption
	EventTypePositionsConverted
	EventTypeTrade
	EventTypeLiquidityAdded
	EventTypeLiquidityRemoved
	EventTypeMarketMakerRegistered
)

// OrderKey is the deterministic ledger ordering of a chain event:
// block height, then transaction index, then log index.
type OrderKey struct {
	Block    uint64
	TxIndex  uint32
	LogIndex uint32
}

// Cmp returns -1, 0 or 1 comparing k against other in ledger order.
func (k OrderKey) Cmp(other OrderKey) int {
	switch {
	case k.Block != other.Block:
		if k.Block < other.Block {
			return -1
		}
		return 1
	case k.TxIndex != other.TxIndex:
		if k.TxIndex < other.TxIndex {
			return -1
		}
		return 1
	case k.LogIndex != other.LogIndex:
		if k.LogIndex < other.LogIndex {
			return -1
		}
		return 1
	default:
		return 0
	}
}

func (k OrderKey) String() string {
	return fmt.Sprintf("%d:%d:%d", k.Block, k.TxIndex, k.LogIndex)
}

// LogKey builds the globally unique identity of an ordered event:
// transaction hash plus log index.
func LogKey(tx common.Hash, logIndex uint32) string {
	return fmt.Sprintf("%s:%d", tx.Hex(), logIndex)
}

// Event is the closed union of normalized chain events. One handler exists
// per variant in the dispatch layer.
type Event interface {
	// IdempotencyKey returns the stable replay-dedup key: the event's
	// chain identity (tx hash + log index, or tx hash alone when at
	// most one such event can occur per transaction).
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// Order returns the (block, txIndex, logIndex) ordering key
	Order() OrderKey

	// Actor returns the account the event acts on behalf of
	// (stakeholder/funder/redeemer/trader), if any. The dispatch layer
	// filters events whose actor is an internal market maker or a
	// designated wrapper contract.
	Actor() (common.Address, bool)
}

func (et EventType) String() string {
	switch et {
	case EventTypeConditionPrepared:
		return "ConditionPrepared"
	case EventTypeConditionResolution:
		return "ConditionResolution"
	case EventTypePositionSplit:
		return "PositionSplit"
	case EventTypePositionsMerge:
		return "PositionsMerge"
	case EventTypePayoutRedemption:
		return "PayoutRedemption"
	case EventTypePositionsConverted:
		return "PositionsConverted"
	case EventTypeTrade:
		return "Trade"
	case EventTypeLiquidityAdded:
		return "LiquidityAdded"
	case EventTypeLiquidityRemoved:
		return "LiquidityRemoved"
	case EventTypeMarketMakerRegistered:
		return "MarketMakerRegistered"
	default:
		return "Unknown"
	}
}
