package storage

import (
	"OutcomeLedger/internal/event"
	"OutcomeLedger/internal/ledger"
	"OutcomeLedger/internal/state"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// JSON row shapes. Big integers travel as decimal strings, hashes and
// addresses as 0x-hex.

type conditionRow struct {
	ID               string   `json:"id"`
	Oracle           string   `json:"oracle"`
	QuestionID       string   `json:"question_id"`
	OutcomeSlotCount int      `json:"outcome_slot_count"`
	MarketMakers     []string `json:"market_makers,omitempty"`
	State            string   `json:"state"`
	PayoutNumerators []string `json:"payout_numerators,omitempty"`
	PayoutDenom      string   `json:"payout_denominator,omitempty"`
	PayoutFractions  []string `json:"payout_fractions,omitempty"`
	ResolvedAtUs     int64    `json:"resolved_at_us,omitempty"`
	ResolutionTx     string   `json:"resolution_tx,omitempty"`
	Version          int64    `json:"version"`
}

type positionRow struct {
	Account        string `json:"account"`
	Market         string `json:"market"`
	Outcome        int    `json:"outcome"`
	QuantityBought string `json:"quantity_bought"`
	QuantitySold   string `json:"quantity_sold"`
	ValueBought    string `json:"value_bought"`
	ValueSold      string `json:"value_sold"`
	NetQuantity    string `json:"net_quantity"`
	NetValue       string `json:"net_value"`
	Version        int64  `json:"version"`
}

type marketMakerRow struct {
	Address       string   `json:"address"`
	ConditionID   string   `json:"condition_id"`
	OutcomeCount  int      `json:"outcome_count"`
	OutcomePrices []string `json:"outcome_prices"`
	RegisteredUs  int64    `json:"registered_us"`
	Version       int64    `json:"version"`
}

type accountRow struct {
	Account     string `json:"account"`
	FirstSeenUs int64  `json:"first_seen_us"`
}

type statsRow struct {
	ConditionsPrepared int64  `json:"conditions_prepared"`
	ConditionsOpen     int64  `json:"conditions_open"`
	ConditionsResolved int64  `json:"conditions_resolved"`
	TraderCount        int64  `json:"trader_count"`
	TradeCount         int64  `json:"trade_count"`
	BuyCount           int64  `json:"buy_count"`
	SellCount          int64  `json:"sell_count"`
	CollateralVolume   string `json:"collateral_volume"`
	ScaledVolume       string `json:"scaled_collateral_volume"`
	CollateralFees     string `json:"collateral_fees"`
	ScaledFees         string `json:"scaled_collateral_fees"`
	BuyVolume          string `json:"collateral_buy_volume"`
	ScaledBuyVolume    string `json:"scaled_collateral_buy_volume"`
	SellVolume         string `json:"collateral_sell_volume"`
	ScaledSellVolume   string `json:"scaled_collateral_sell_volume"`
	OpenInterest       string `json:"open_interest"`
	Version            int64  `json:"version"`
}

type transactionRow struct {
	TxHash           string `json:"tx_hash"`
	Type             string `json:"type"`
	Account          string `json:"account"`
	Market           string `json:"market"`
	OutcomeIndex     int    `json:"outcome_index"`
	TokenAmount      string `json:"token_amount"`
	CollateralAmount string `json:"collateral_amount"`
	FeeAmount        string `json:"fee_amount"`
	TimestampUs      int64  `json:"timestamp_us"`
}

type negRiskRow struct {
	ID          string `json:"id"`
	ConditionID string `json:"condition_id"`
	Outcome     int    `json:"outcome"`
}

// EncodeCondition renders a condition as an entity record.
func EncodeCondition(c *state.Condition) Record {
	row := conditionRow{
		ID:               c.ID.Hex(),
		Oracle:           c.Oracle.Hex(),
		QuestionID:       c.QuestionID.Hex(),
		OutcomeSlotCount: c.OutcomeSlotCount,
		State:            c.State.String(),
		Version:          c.Version,
	}
	for _, mm := range c.MarketMakers {
		row.MarketMakers = append(row.MarketMakers, mm.Hex())
	}
	if c.Resolved() {
		row.PayoutNumerators = bigStrings(c.PayoutNumerators)
		row.PayoutDenom = c.PayoutDenominator.String()
		for _, f := range c.PayoutFractions {
			row.PayoutFractions = append(row.PayoutFractions, f.String())
		}
		row.ResolvedAtUs = c.ResolutionTimestamp.UnixMicro()
		row.ResolutionTx = c.ResolutionTx.Hex()
	}
	return Record{Kind: KindCondition, Key: c.ID.Hex(), Value: marshal(row)}
}

// DecodeCondition restores a condition from its entity record.
func DecodeCondition(value []byte) (*state.Condition, error) {
	var row conditionRow
	if err := json.Unmarshal(value, &row); err != nil {
		return nil, fmt.Errorf("decode condition: %w", err)
	}

	cond := &state.Condition{
		ID:               common.HexToHash(row.ID),
		Oracle:           common.HexToAddress(row.Oracle),
		QuestionID:       common.HexToHash(row.QuestionID),
		OutcomeSlotCount: row.OutcomeSlotCount,
		Version:          row.Version,
	}
	for _, mm := range row.MarketMakers {
		cond.MarketMakers = append(cond.MarketMakers, common.HexToAddress(mm))
	}

	if row.State == state.ConditionStateResolved.String() {
		cond.State = state.ConditionStateResolved
		numerators, err := parseBigs(row.PayoutNumerators)
		if err != nil {
			return nil, fmt.Errorf("decode condition %s: %w", row.ID, err)
		}
		denominator, err := parseBig(row.PayoutDenom)
		if err != nil {
			return nil, fmt.Errorf("decode condition %s: %w", row.ID, err)
		}
		fractions := make([]decimal.Decimal, 0, len(row.PayoutFractions))
		for _, f := range row.PayoutFractions {
			d, err := decimal.NewFromString(f)
			if err != nil {
				return nil, fmt.Errorf("decode condition %s payout fraction: %w", row.ID, err)
			}
			fractions = append(fractions, d)
		}
		cond.PayoutNumerators = numerators
		cond.PayoutDenominator = denominator
		cond.PayoutFractions = fractions
		cond.ResolutionTimestamp = time.UnixMicro(row.ResolvedAtUs)
		cond.ResolutionTx = common.HexToHash(row.ResolutionTx)
	}

	return cond, nil
}

// EncodePosition renders a market position as an entity record keyed by
// the composite position key's documented serialization.
func EncodePosition(p *ledger.MarketPosition) Record {
	row := positionRow{
		Account:        p.Account.Hex(),
		Market:         p.Market.Hex(),
		Outcome:        p.Outcome,
		QuantityBought: p.QuantityBought.String(),
		QuantitySold:   p.QuantitySold.String(),
		ValueBought:    p.ValueBought.String(),
		ValueSold:      p.ValueSold.String(),
		NetQuantity:    p.NetQuantity.String(),
		NetValue:       p.NetValue.String(),
		Version:        p.Version,
	}
	return Record{Kind: KindPosition, Key: p.Key().String(), Value: marshal(row)}
}

// DecodePosition restores a market position from its entity record.
func DecodePosition(value []byte) (*ledger.MarketPosition, error) {
	var row positionRow
	if err := json.Unmarshal(value, &row); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}

	pos := ledger.NewMarketPosition(ledger.PositionKey{
		Account: common.HexToAddress(row.Account),
		Market:  common.HexToAddress(row.Market),
		Outcome: row.Outcome,
	})

	for _, field := range []struct {
		dst *big.Int
		src string
	}{
		{pos.QuantityBought, row.QuantityBought},
		{pos.QuantitySold, row.QuantitySold},
		{pos.ValueBought, row.ValueBought},
		{pos.ValueSold, row.ValueSold},
		{pos.NetQuantity, row.NetQuantity},
		{pos.NetValue, row.NetValue},
	} {
		v, err := parseBig(field.src)
		if err != nil {
			return nil, fmt.Errorf("decode position %s/%s/%d: %w", row.Account, row.Market, row.Outcome, err)
		}
		field.dst.Set(v)
	}
	pos.Version = row.Version

	return pos, nil
}

// EncodeMarketMaker renders a market-maker descriptor as an entity record.
func EncodeMarketMaker(mm *state.MarketMaker) Record {
	row := marketMakerRow{
		Address:      mm.Address.Hex(),
		ConditionID:  mm.ConditionID.Hex(),
		OutcomeCount: mm.OutcomeCount,
		RegisteredUs: mm.RegisteredAt.UnixMicro(),
		Version:      mm.Version,
	}
	for _, p := range mm.OutcomePrices {
		row.OutcomePrices = append(row.OutcomePrices, p.String())
	}
	return Record{Kind: KindMarketMaker, Key: mm.Address.Hex(), Value: marshal(row)}
}

// DecodeMarketMaker restores a descriptor from its entity record.
func DecodeMarketMaker(value []byte) (*state.MarketMaker, error) {
	var row marketMakerRow
	if err := json.Unmarshal(value, &row); err != nil {
		return nil, fmt.Errorf("decode market maker: %w", err)
	}

	mm := &state.MarketMaker{
		Address:      common.HexToAddress(row.Address),
		ConditionID:  common.HexToHash(row.ConditionID),
		OutcomeCount: row.OutcomeCount,
		RegisteredAt: time.UnixMicro(row.RegisteredUs),
		Version:      row.Version,
	}
	for _, p := range row.OutcomePrices {
		d, err := decimal.NewFromString(p)
		if err != nil {
			return nil, fmt.Errorf("decode market maker %s price: %w", row.Address, err)
		}
		mm.OutcomePrices = append(mm.OutcomePrices, d)
	}
	return mm, nil
}

// EncodeAccount renders a first-sighting as an entity record.
func EncodeAccount(account common.Address, firstSeen time.Time) Record {
	row := accountRow{Account: account.Hex(), FirstSeenUs: firstSeen.UnixMicro()}
	return Record{Kind: KindAccount, Key: account.Hex(), Value: marshal(row)}
}

// DecodeAccount restores a first-sighting from its entity record.
func DecodeAccount(value []byte) (common.Address, time.Time, error) {
	var row accountRow
	if err := json.Unmarshal(value, &row); err != nil {
		return common.Address{}, time.Time{}, fmt.Errorf("decode account: %w", err)
	}
	return common.HexToAddress(row.Account), time.UnixMicro(row.FirstSeenUs), nil
}

// EncodeStats renders the GlobalStats singleton as an entity record.
func EncodeStats(s *state.GlobalStats) Record {
	row := statsRow{
		ConditionsPrepared: s.ConditionsPrepared,
		ConditionsOpen:     s.ConditionsOpen,
		ConditionsResolved: s.ConditionsResolved,
		TraderCount:        s.TraderCount,
		TradeCount:         s.TradeCount,
		BuyCount:           s.BuyCount,
		SellCount:          s.SellCount,
		CollateralVolume:   s.CollateralVolume.String(),
		ScaledVolume:       s.ScaledCollateralVolume.String(),
		CollateralFees:     s.CollateralFees.String(),
		ScaledFees:         s.ScaledCollateralFees.String(),
		BuyVolume:          s.CollateralBuyVolume.String(),
		ScaledBuyVolume:    s.ScaledCollateralBuyVolume.String(),
		SellVolume:         s.CollateralSellVolume.String(),
		ScaledSellVolume:   s.ScaledCollateralSellVolume.String(),
		OpenInterest:       s.OpenInterest.String(),
		Version:            s.Version,
	}
	return Record{Kind: KindStats, Key: StatsKey, Value: marshal(row)}
}

// DecodeStats restores the GlobalStats singleton from its entity record.
func DecodeStats(value []byte) (*state.GlobalStats, error) {
	var row statsRow
	if err := json.Unmarshal(value, &row); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}

	s := state.NewGlobalStats()
	s.ConditionsPrepared = row.ConditionsPrepared
	s.ConditionsOpen = row.ConditionsOpen
	s.ConditionsResolved = row.ConditionsResolved
	s.TraderCount = row.TraderCount
	s.TradeCount = row.TradeCount
	s.BuyCount = row.BuyCount
	s.SellCount = row.SellCount
	s.Version = row.Version

	for _, field := range []struct {
		dst *big.Int
		src string
	}{
		{s.CollateralVolume, row.CollateralVolume},
		{s.CollateralFees, row.CollateralFees},
		{s.CollateralBuyVolume, row.BuyVolume},
		{s.CollateralSellVolume, row.SellVolume},
		{s.OpenInterest, row.OpenInterest},
	} {
		v, err := parseBig(field.src)
		if err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
		field.dst.Set(v)
	}

	for _, field := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&s.ScaledCollateralVolume, row.ScaledVolume},
		{&s.ScaledCollateralFees, row.ScaledFees},
		{&s.ScaledCollateralBuyVolume, row.ScaledBuyVolume},
		{&s.ScaledCollateralSellVolume, row.ScaledSellVolume},
	} {
		if field.src == "" {
			continue
		}
		d, err := decimal.NewFromString(field.src)
		if err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
		*field.dst = d
	}

	return s, nil
}

// EncodeTransaction renders a trade transaction context as an entity record.
func EncodeTransaction(tx *state.Transaction) Record {
	row := transactionRow{
		TxHash:           tx.TxHash.Hex(),
		Type:             tx.Type.String(),
		Account:          tx.Account.Hex(),
		Market:           tx.Market.Hex(),
		OutcomeIndex:     tx.OutcomeIndex,
		TokenAmount:      tx.TokenAmount.String(),
		CollateralAmount: tx.CollateralAmount.String(),
		FeeAmount:        tx.FeeAmount.String(),
		TimestampUs:      tx.Timestamp.UnixMicro(),
	}
	return Record{Kind: KindTransaction, Key: tx.TxHash.Hex(), Value: marshal(row)}
}

// DecodeTransaction restores a trade transaction context.
func DecodeTransaction(value []byte) (*state.Transaction, error) {
	var row transactionRow
	if err := json.Unmarshal(value, &row); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}

	tradeType := event.TradeTypeBuy
	if row.Type == event.TradeTypeSell.String() {
		tradeType = event.TradeTypeSell
	}

	tx := &state.Transaction{
		TxHash:       common.HexToHash(row.TxHash),
		Type:         tradeType,
		Account:      common.HexToAddress(row.Account),
		Market:       common.HexToAddress(row.Market),
		OutcomeIndex: row.OutcomeIndex,
		Timestamp:    time.UnixMicro(row.TimestampUs),
	}
	for _, field := range []struct {
		dst **big.Int
		src string
	}{
		{&tx.TokenAmount, row.TokenAmount},
		{&tx.CollateralAmount, row.CollateralAmount},
		{&tx.FeeAmount, row.FeeAmount},
	} {
		v, err := parseBig(field.src)
		if err != nil {
			return nil, fmt.Errorf("decode transaction %s: %w", row.TxHash, err)
		}
		*field.dst = v
	}
	return tx, nil
}

// EncodeNegRisk renders an auxiliary neg-risk record.
func EncodeNegRisk(aux *state.NegRiskPosition) Record {
	row := negRiskRow{
		ID:          aux.ID.Hex(),
		ConditionID: aux.ConditionID.Hex(),
		Outcome:     aux.Outcome,
	}
	return Record{Kind: KindNegRisk, Key: aux.ID.Hex(), Value: marshal(row)}
}

// DecodeNegRisk restores an auxiliary neg-risk record.
func DecodeNegRisk(value []byte) (*state.NegRiskPosition, error) {
	var row negRiskRow
	if err := json.Unmarshal(value, &row); err != nil {
		return nil, fmt.Errorf("decode negrisk: %w", err)
	}
	return &state.NegRiskPosition{
		ID:          common.HexToHash(row.ID),
		ConditionID: common.HexToHash(row.ConditionID),
		Outcome:     row.Outcome,
	}, nil
}

func marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Row shapes are plain structs; marshal cannot fail on them.
		panic(fmt.Sprintf("storage: marshal row: %v", err))
	}
	return data
}

func bigStrings(values []*big.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed integer %q", s)
	}
	return v, nil
}

func parseBigs(values []string) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(values))
	for _, s := range values {
		v, err := parseBig(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
