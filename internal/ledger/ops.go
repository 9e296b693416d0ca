package ledger

import (
	fpmath "OutcomeLedger/internal/math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ledger applies the event-driven update rules to the position store.
// All failures are soft: they are logged with the offending key and the
// remaining legs proceed. The ledger favors availability over strictness:
// it must survive upstream inconsistency rather than halt.
type Ledger struct {
	tracker *PositionTracker
	log     zerolog.Logger
}

func NewLedger(log zerolog.Logger) *Ledger {
	return &Ledger{
		tracker: NewPositionTracker(),
		log:     log,
	}
}

// Tracker exposes the underlying position store (warm restore, queries).
func (l *Ledger) Tracker() *PositionTracker {
	return l.tracker
}

// commit recomputes derived fields and reports the non-negative holding
// invariant. The write stands either way.
func (l *Ledger) commit(pos *MarketPosition) {
	pos.Recompute()
	if !pos.NetNonNegative() {
		l.log.Error().
			Str("account", pos.Account.Hex()).
			Str("market", pos.Market.Hex()).
			Int("outcome", pos.Outcome).
			Str("net_quantity", pos.NetQuantity.String()).
			Msg("invariant violation: negative net quantity, upstream tracking gap")
	}
}

// ApplySplit credits every outcome leg of the market with the split amount.
// Collateral is valued across N equally-priced legs: valueBought gains
// amount/N per outcome (truncating). The equal-price heuristic is part of
// the historical accounting semantics and must not be replaced with live
// pricing.
func (l *Ledger) ApplySplit(account, market common.Address, outcomeCount int, amount *big.Int) []*MarketPosition {
	perLegValue := fpmath.DivTruncInt64(amount, int64(outcomeCount))

	touched := make([]*MarketPosition, 0, outcomeCount)
	for outcome := 0; outcome < outcomeCount; outcome++ {
		pos := l.tracker.GetOrCreate(PositionKey{Account: account, Market: market, Outcome: outcome})
		pos.QuantityBought.Add(pos.QuantityBought, amount)
		pos.ValueBought.Add(pos.ValueBought, perLegValue)
		l.commit(pos)
		touched = append(touched, pos)
	}
	return touched
}

// ApplyMerge is the inverse of ApplySplit: every outcome leg sells the
// merged amount at the same equal-price valuation.
func (l *Ledger) ApplyMerge(account, market common.Address, outcomeCount int, amount *big.Int) []*MarketPosition {
	perLegValue := fpmath.DivTruncInt64(amount, int64(outcomeCount))

	touched := make([]*MarketPosition, 0, outcomeCount)
	for outcome := 0; outcome < outcomeCount; outcome++ {
		pos := l.tracker.GetOrCreate(PositionKey{Account: account, Market: market, Outcome: outcome})
		pos.QuantitySold.Add(pos.QuantitySold, amount)
		pos.ValueSold.Add(pos.ValueSold, perLegValue)
		l.commit(pos)
		touched = append(touched, pos)
	}
	return touched
}

// ApplyRedemption settles the redeemed outcome legs of a resolved
// condition. Each leg sells its FULL net quantity (not the
// protocol-reported payout) valued at netQuantity x numerator/denominator
// with truncating division, driving the leg's net quantity to zero.
// Legs with zero or negative net quantity are left untouched: a negative
// net is an already-reported upstream violation, and booking a negative
// sale here would compound it instead of settling anything.
// Returns the touched positions and the summed redemption value.
func (l *Ledger) ApplyRedemption(
	account, market common.Address,
	indexes []int,
	numerators []*big.Int,
	denominator *big.Int,
) ([]*MarketPosition, *big.Int) {
	touched := make([]*MarketPosition, 0, len(indexes))
	totalValue := new(big.Int)

	for _, outcome := range indexes {
		if outcome < 0 || outcome >= len(numerators) {
			l.log.Warn().
				Str("account", account.Hex()).
				Str("market", market.Hex()).
				Int("outcome", outcome).
				Int("outcome_slots", len(numerators)).
				Msg("redemption index outside payout vector, leg skipped")
			continue
		}

		pos := l.tracker.GetOrCreate(PositionKey{Account: account, Market: market, Outcome: outcome})
		netQuantity := new(big.Int).Set(pos.NetQuantity)
		if netQuantity.Sign() <= 0 {
			// Nothing to redeem on this leg
			continue
		}

		redemptionValue := fpmath.MulDiv(netQuantity, numerators[outcome], denominator)

		pos.QuantitySold.Add(pos.QuantitySold, netQuantity)
		pos.ValueSold.Add(pos.ValueSold, redemptionValue)
		l.commit(pos)

		totalValue.Add(totalValue, redemptionValue)
		touched = append(touched, pos)
	}

	return touched, totalValue
}

// ApplyBuy credits a trade's outcome leg with the bought tokens at the
// collateral the trader paid.
func (l *Ledger) ApplyBuy(account, market common.Address, outcome int, tokenAmount, collateralAmount *big.Int) *MarketPosition {
	pos := l.tracker.GetOrCreate(PositionKey{Account: account, Market: market, Outcome: outcome})
	pos.QuantityBought.Add(pos.QuantityBought, tokenAmount)
	pos.ValueBought.Add(pos.ValueBought, collateralAmount)
	l.commit(pos)
	return pos
}

// ApplySell debits a trade's outcome leg with the sold tokens at the
// collateral the trader received.
func (l *Ledger) ApplySell(account, market common.Address, outcome int, tokenAmount, collateralAmount *big.Int) *MarketPosition {
	pos := l.tracker.GetOrCreate(PositionKey{Account: account, Market: market, Outcome: outcome})
	pos.QuantitySold.Add(pos.QuantitySold, tokenAmount)
	pos.ValueSold.Add(pos.ValueSold, collateralAmount)
	l.commit(pos)
	return pos
}

// ApplyLiquidityAdded books the refunded outcome tokens a funder receives
// when the pool keeps unequal per-outcome amounts. The anchor is the
// largest per-outcome amount; every leg below it refunds the difference,
// valued at the market's current price snapshot rounded to integer units.
func (l *Ledger) ApplyLiquidityAdded(
	funder, market common.Address,
	amountsAdded []*big.Int,
	prices []decimal.Decimal,
) []*MarketPosition {
	anchor := fpmath.MaxBig(amountsAdded)

	touched := make([]*MarketPosition, 0, len(amountsAdded))
	for outcome, added := range amountsAdded {
		refunded := new(big.Int).Sub(anchor, added)
		if refunded.Sign() <= 0 {
			continue
		}

		price := decimal.Zero
		if outcome < len(prices) {
			price = prices[outcome]
		} else {
			l.log.Warn().
				Str("market", market.Hex()).
				Int("outcome", outcome).
				Msg("no price snapshot for outcome, refunded leg valued at zero")
		}

		pos := l.tracker.GetOrCreate(PositionKey{Account: funder, Market: market, Outcome: outcome})
		pos.QuantityBought.Add(pos.QuantityBought, refunded)
		pos.ValueBought.Add(pos.ValueBought, fpmath.MulPriceRounded(refunded, price))
		l.commit(pos)
		touched = append(touched, pos)
	}
	return touched
}

// ApplyLiquidityRemoved books the per-outcome tokens a funder withdraws by
// burning pool shares, each leg valued at sharesBurnt/outcomeCount.
func (l *Ledger) ApplyLiquidityRemoved(
	funder, market common.Address,
	amountsRemoved []*big.Int,
	sharesBurnt *big.Int,
) []*MarketPosition {
	outcomeCount := len(amountsRemoved)
	if outcomeCount == 0 {
		return nil
	}
	perLegValue := fpmath.DivTruncInt64(sharesBurnt, int64(outcomeCount))

	touched := make([]*MarketPosition, 0, outcomeCount)
	for outcome, removed := range amountsRemoved {
		pos := l.tracker.GetOrCreate(PositionKey{Account: funder, Market: market, Outcome: outcome})
		pos.QuantityBought.Add(pos.QuantityBought, removed)
		pos.ValueBought.Add(pos.ValueBought, perLegValue)
		l.commit(pos)
		touched = append(touched, pos)
	}
	return touched
}
