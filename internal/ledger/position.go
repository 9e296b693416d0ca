package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PositionKey identifies a position by (account, market, outcome index).
// It is an explicit composite struct: identity components never get
// concatenated into an undelimited string, so variable-length encodings
// cannot collide.
type PositionKey struct {
	Account common.Address
	Market  common.Address
	Outcome int
}

// String is the documented stable serialization of the key:
// lowercase hex account, lowercase hex market and decimal outcome index,
// joined by ':'. Used as the entity-store key for the position.
func (k PositionKey) String() string {
	return fmt.Sprintf("%s:%s:%d", k.Account.Hex(), k.Market.Hex(), k.Outcome)
}

// MarketPosition is the per-(account, market, outcome) balance record.
// Bought/sold totals are append-only; net fields are derived and
// recomputed after every mutation. History is reconstructed by replaying
// the cumulative totals, never by storing a running balance alone.
type MarketPosition struct {
	Account common.Address
	Market  common.Address
	Outcome int

	QuantityBought *big.Int
	QuantitySold   *big.Int
	ValueBought    *big.Int
	ValueSold      *big.Int

	// Derived: bought minus sold
	NetQuantity *big.Int
	NetValue    *big.Int

	Version int64
}

// NewMarketPosition creates a zeroed position for the key.
func NewMarketPosition(key PositionKey) *MarketPosition {
	return &MarketPosition{
		Account:        key.Account,
		Market:         key.Market,
		Outcome:        key.Outcome,
		QuantityBought: new(big.Int),
		QuantitySold:   new(big.Int),
		ValueBought:    new(big.Int),
		ValueSold:      new(big.Int),
		NetQuantity:    new(big.Int),
		NetValue:       new(big.Int),
	}
}

// Key returns the composite identity of the position.
func (p *MarketPosition) Key() PositionKey {
	return PositionKey{Account: p.Account, Market: p.Market, Outcome: p.Outcome}
}

// Recompute refreshes the derived net fields from the cumulative totals.
func (p *MarketPosition) Recompute() {
	p.NetQuantity.Sub(p.QuantityBought, p.QuantitySold)
	p.NetValue.Sub(p.ValueBought, p.ValueSold)
	p.Version++
}

// NetNonNegative reports the soft holding invariant. A negative net
// quantity indicates an upstream tracking gap (e.g. an off-ledger token
// transfer); it is reported, never corrected.
func (p *MarketPosition) NetNonNegative() bool {
	return p.NetQuantity.Sign() >= 0
}
