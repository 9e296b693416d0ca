package ingestion

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"OutcomeLedger/internal/event"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell validates and converts raw events
// before they reach the single-threaded engine.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "ConditionPrepared":
		return parseConditionPrepared(raw.Data)
	case "ConditionResolution":
		return parseConditionResolution(raw.Data)
	case "PositionSplit":
		return parsePositionSplit(raw.Data)
	case "PositionsMerge":
		return parsePositionsMerge(raw.Data)
	case "PayoutRedemption":
		return parsePayoutRedemption(raw.Data)
	case "PositionsConverted":
		return parsePositionsConverted(raw.Data)
	case "Trade":
		return parseTrade(raw.Data)
	case "LiquidityAdded":
		return parseLiquidityAdded(raw.Data)
	case "LiquidityRemoved":
		return parseLiquidityRemoved(raw.Data)
	case "MarketMakerRegistered":
		return parseMarketMakerRegistered(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS. Field names
// use snake_case to match the upstream indexer. Addresses and hashes are
// 0x-hex; token amounts are decimal strings (they exceed int64).

type chainRefJSON struct {
	TxHash      string `json:"tx_hash"`
	Block       uint64 `json:"block"`
	TxIndex     uint32 `json:"tx_index"`
	LogIndex    uint32 `json:"log_index"`
	TimestampUs int64  `json:"timestamp_us"`
}

func (c chainRefJSON) validate(eventType string) (common.Hash, error) {
	txHash, err := parseHash(c.TxHash)
	if err != nil {
		return common.Hash{}, fmt.Errorf("parse %s tx_hash: %w", eventType, err)
	}
	return txHash, nil
}

type conditionPreparedJSON struct {
	ConditionID      string `json:"condition_id"`
	Oracle           string `json:"oracle"`
	QuestionID       string `json:"question_id"`
	OutcomeSlotCount int    `json:"outcome_slot_count"`
	chainRefJSON
}

func parseConditionPrepared(data []byte) (*event.ConditionPrepared, error) {
	var j conditionPreparedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ConditionPrepared: %w", err)
	}
	txHash, err := j.validate("ConditionPrepared")
	if err != nil {
		return nil, err
	}
	conditionID, err := parseHash(j.ConditionID)
	if err != nil {
		return nil, fmt.Errorf("parse condition_id: %w", err)
	}
	oracle, err := parseAddress(j.Oracle)
	if err != nil {
		return nil, fmt.Errorf("parse oracle: %w", err)
	}
	questionID, err := parseHash(j.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("parse question_id: %w", err)
	}
	if j.OutcomeSlotCount < 2 {
		return nil, fmt.Errorf("outcome_slot_count %d below minimum of 2", j.OutcomeSlotCount)
	}

	return &event.ConditionPrepared{
		ConditionID:      conditionID,
		Oracle:           oracle,
		QuestionID:       questionID,
		OutcomeSlotCount: j.OutcomeSlotCount,
		TxHash:           txHash,
		Block:            j.Block,
		TxIndex:          j.TxIndex,
		LogIndex:         j.LogIndex,
		Timestamp:        time.UnixMicro(j.TimestampUs),
	}, nil
}

type conditionResolutionJSON struct {
	ConditionID      string   `json:"condition_id"`
	PayoutNumerators []string `json:"payout_numerators"`
	chainRefJSON
}

func parseConditionResolution(data []byte) (*event.ConditionResolution, error) {
	var j conditionResolutionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ConditionResolution: %w", err)
	}
	txHash, err := j.validate("ConditionResolution")
	if err != nil {
		return nil, err
	}
	conditionID, err := parseHash(j.ConditionID)
	if err != nil {
		return nil, fmt.Errorf("parse condition_id: %w", err)
	}
	numerators, err := parseBigs(j.PayoutNumerators)
	if err != nil {
		return nil, fmt.Errorf("parse payout_numerators: %w", err)
	}
	if len(numerators) == 0 {
		return nil, fmt.Errorf("empty payout_numerators")
	}

	return &event.ConditionResolution{
		ConditionID:      conditionID,
		PayoutNumerators: numerators,
		TxHash:           txHash,
		Block:            j.Block,
		TxIndex:          j.TxIndex,
		LogIndex:         j.LogIndex,
		Timestamp:        time.UnixMicro(j.TimestampUs),
	}, nil
}

type positionChangeJSON struct {
	Stakeholder        string   `json:"stakeholder"`
	CollateralToken    string   `json:"collateral_token"`
	ParentCollectionID string   `json:"parent_collection_id"`
	ConditionID        string   `json:"condition_id"`
	Partition          []string `json:"partition"`
	Amount             string   `json:"amount"`
	chainRefJSON
}

func (j positionChangeJSON) fields(eventType string) (common.Address, common.Address, common.Hash, common.Hash, []*big.Int, *big.Int, common.Hash, error) {
	var zeroA common.Address
	var zeroH common.Hash

	txHash, err := j.validate(eventType)
	if err != nil {
		return zeroA, zeroA, zeroH, zeroH, nil, nil, zeroH, err
	}
	stakeholder, err := parseAddress(j.Stakeholder)
	if err != nil {
		return zeroA, zeroA, zeroH, zeroH, nil, nil, zeroH, fmt.Errorf("parse stakeholder: %w", err)
	}
	collateral, err := parseAddress(j.CollateralToken)
	if err != nil {
		return zeroA, zeroA, zeroH, zeroH, nil, nil, zeroH, fmt.Errorf("parse collateral_token: %w", err)
	}
	parent, err := parseHash(j.ParentCollectionID)
	if err != nil {
		return zeroA, zeroA, zeroH, zeroH, nil, nil, zeroH, fmt.Errorf("parse parent_collection_id: %w", err)
	}
	conditionID, err := parseHash(j.ConditionID)
	if err != nil {
		return zeroA, zeroA, zeroH, zeroH, nil, nil, zeroH, fmt.Errorf("parse condition_id: %w", err)
	}
	partition, err := parseBigs(j.Partition)
	if err != nil {
		return zeroA, zeroA, zeroH, zeroH, nil, nil, zeroH, fmt.Errorf("parse partition: %w", err)
	}
	amount, err := parseBig(j.Amount)
	if err != nil {
		return zeroA, zeroA, zeroH, zeroH, nil, nil, zeroH, fmt.Errorf("parse amount: %w", err)
	}
	return stakeholder, collateral, parent, conditionID, partition, amount, txHash, nil
}

func parsePositionSplit(data []byte) (*event.PositionSplit, error) {
	var j positionChangeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PositionSplit: %w", err)
	}
	stakeholder, collateral, parent, conditionID, partition, amount, txHash, err := j.fields("PositionSplit")
	if err != nil {
		return nil, err
	}
	return &event.PositionSplit{
		Stakeholder:        stakeholder,
		CollateralToken:    collateral,
		ParentCollectionID: parent,
		ConditionID:        conditionID,
		Partition:          partition,
		Amount:             amount,
		TxHash:             txHash,
		Block:              j.Block,
		TxIndex:            j.TxIndex,
		LogIndex:           j.LogIndex,
		Timestamp:          time.UnixMicro(j.TimestampUs),
	}, nil
}

func parsePositionsMerge(data []byte) (*event.PositionsMerge, error) {
	var j positionChangeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PositionsMerge: %w", err)
	}
	stakeholder, collateral, parent, conditionID, partition, amount, txHash, err := j.fields("PositionsMerge")
	if err != nil {
		return nil, err
	}
	return &event.PositionsMerge{
		Stakeholder:        stakeholder,
		CollateralToken:    collateral,
		ParentCollectionID: parent,
		ConditionID:        conditionID,
		Partition:          partition,
		Amount:             amount,
		TxHash:             txHash,
		Block:              j.Block,
		TxIndex:            j.TxIndex,
		LogIndex:           j.LogIndex,
		Timestamp:          time.UnixMicro(j.TimestampUs),
	}, nil
}

type payoutRedemptionJSON struct {
	Redeemer           string   `json:"redeemer"`
	CollateralToken    string   `json:"collateral_token"`
	ParentCollectionID string   `json:"parent_collection_id"`
	ConditionID        string   `json:"condition_id"`
	IndexSets          []string `json:"index_sets"`
	Payout             string   `json:"payout"`
	chainRefJSON
}

func parsePayoutRedemption(data []byte) (*event.PayoutRedemption, error) {
	var j payoutRedemptionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PayoutRedemption: %w", err)
	}
	txHash, err := j.validate("PayoutRedemption")
	if err != nil {
		return nil, err
	}
	redeemer, err := parseAddress(j.Redeemer)
	if err != nil {
		return nil, fmt.Errorf("parse redeemer: %w", err)
	}
	collateral, err := parseAddress(j.CollateralToken)
	if err != nil {
		return nil, fmt.Errorf("parse collateral_token: %w", err)
	}
	parent, err := parseHash(j.ParentCollectionID)
	if err != nil {
		return nil, fmt.Errorf("parse parent_collection_id: %w", err)
	}
	conditionID, err := parseHash(j.ConditionID)
	if err != nil {
		return nil, fmt.Errorf("parse condition_id: %w", err)
	}
	indexSets, err := parseBigs(j.IndexSets)
	if err != nil {
		return nil, fmt.Errorf("parse index_sets: %w", err)
	}
	payout, err := parseBig(j.Payout)
	if err != nil {
		return nil, fmt.Errorf("parse payout: %w", err)
	}

	return &event.PayoutRedemption{
		Redeemer:           redeemer,
		CollateralToken:    collateral,
		ParentCollectionID: parent,
		ConditionID:        conditionID,
		IndexSets:          indexSets,
		Payout:             payout,
		TxHash:             txHash,
		Block:              j.Block,
		TxIndex:            j.TxIndex,
		LogIndex:           j.LogIndex,
		Timestamp:          time.UnixMicro(j.TimestampUs),
	}, nil
}

type positionsConvertedJSON struct {
	Stakeholder     string `json:"stakeholder"`
	NegRiskMarketID string `json:"neg_risk_market_id"`
	IndexSet        string `json:"index_set"`
	Amount          string `json:"amount"`
	QuestionCount   int    `json:"question_count"`
	chainRefJSON
}

func parsePositionsConverted(data []byte) (*event.PositionsConverted, error) {
	var j positionsConvertedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PositionsConverted: %w", err)
	}
	txHash, err := j.validate("PositionsConverted")
	if err != nil {
		return nil, err
	}
	stakeholder, err := parseAddress(j.Stakeholder)
	if err != nil {
		return nil, fmt.Errorf("parse stakeholder: %w", err)
	}
	marketID, err := parseHash(j.NegRiskMarketID)
	if err != nil {
		return nil, fmt.Errorf("parse neg_risk_market_id: %w", err)
	}
	indexSet, err := parseBig(j.IndexSet)
	if err != nil {
		return nil, fmt.Errorf("parse index_set: %w", err)
	}
	amount, err := parseBig(j.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}

	return &event.PositionsConverted{
		Stakeholder:     stakeholder,
		NegRiskMarketID: marketID,
		IndexSet:        indexSet,
		Amount:          amount,
		QuestionCount:   j.QuestionCount,
		TxHash:          txHash,
		Block:           j.Block,
		TxIndex:         j.TxIndex,
		LogIndex:        j.LogIndex,
		Timestamp:       time.UnixMicro(j.TimestampUs),
	}, nil
}

type tradeJSON struct {
	Type             string `json:"type"` // "buy" or "sell"
	Account          string `json:"account"`
	Market           string `json:"market"`
	OutcomeIndex     int    `json:"outcome_index"`
	TokenAmount      string `json:"token_amount"`
	CollateralAmount string `json:"collateral_amount"`
	FeeAmount        string `json:"fee_amount"`
	chainRefJSON
}

func parseTrade(data []byte) (*event.Trade, error) {
	var j tradeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Trade: %w", err)
	}
	txHash, err := j.validate("Trade")
	if err != nil {
		return nil, err
	}
	account, err := parseAddress(j.Account)
	if err != nil {
		return nil, fmt.Errorf("parse account: %w", err)
	}
	market, err := parseAddress(j.Market)
	if err != nil {
		return nil, fmt.Errorf("parse market: %w", err)
	}
	tokenAmount, err := parseBig(j.TokenAmount)
	if err != nil {
		return nil, fmt.Errorf("parse token_amount: %w", err)
	}
	collateralAmount, err := parseBig(j.CollateralAmount)
	if err != nil {
		return nil, fmt.Errorf("parse collateral_amount: %w", err)
	}
	feeAmount, err := parseBig(j.FeeAmount)
	if err != nil {
		return nil, fmt.Errorf("parse fee_amount: %w", err)
	}

	tradeType := event.TradeTypeBuy
	if strings.EqualFold(j.Type, "sell") {
		tradeType = event.TradeTypeSell
	}

	return &event.Trade{
		TxHash:           txHash,
		Type:             tradeType,
		Account:          account,
		Market:           market,
		OutcomeIndex:     j.OutcomeIndex,
		TokenAmount:      tokenAmount,
		CollateralAmount: collateralAmount,
		FeeAmount:        feeAmount,
		Block:            j.Block,
		TxIndex:          j.TxIndex,
		LogIndex:         j.LogIndex,
		Timestamp:        time.UnixMicro(j.TimestampUs),
	}, nil
}

type liquidityJSON struct {
	Market  string   `json:"market"`
	Funder  string   `json:"funder"`
	Amounts []string `json:"amounts"`
	Shares  string   `json:"shares"`
	chainRefJSON
}

func parseLiquidityAdded(data []byte) (*event.LiquidityAdded, error) {
	var j liquidityJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse LiquidityAdded: %w", err)
	}
	txHash, market, funder, amounts, shares, err := j.fields("LiquidityAdded")
	if err != nil {
		return nil, err
	}
	return &event.LiquidityAdded{
		Market:       market,
		Funder:       funder,
		AmountsAdded: amounts,
		SharesMinted: shares,
		TxHash:       txHash,
		Block:        j.Block,
		TxIndex:      j.TxIndex,
		LogIndex:     j.LogIndex,
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseLiquidityRemoved(data []byte) (*event.LiquidityRemoved, error) {
	var j liquidityJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse LiquidityRemoved: %w", err)
	}
	txHash, market, funder, amounts, shares, err := j.fields("LiquidityRemoved")
	if err != nil {
		return nil, err
	}
	return &event.LiquidityRemoved{
		Market:         market,
		Funder:         funder,
		AmountsRemoved: amounts,
		SharesBurnt:    shares,
		TxHash:         txHash,
		Block:          j.Block,
		TxIndex:        j.TxIndex,
		LogIndex:       j.LogIndex,
		Timestamp:      time.UnixMicro(j.TimestampUs),
	}, nil
}

func (j liquidityJSON) fields(eventType string) (common.Hash, common.Address, common.Address, []*big.Int, *big.Int, error) {
	var zeroA common.Address
	var zeroH common.Hash

	txHash, err := j.validate(eventType)
	if err != nil {
		return zeroH, zeroA, zeroA, nil, nil, err
	}
	market, err := parseAddress(j.Market)
	if err != nil {
		return zeroH, zeroA, zeroA, nil, nil, fmt.Errorf("parse market: %w", err)
	}
	funder, err := parseAddress(j.Funder)
	if err != nil {
		return zeroH, zeroA, zeroA, nil, nil, fmt.Errorf("parse funder: %w", err)
	}
	amounts, err := parseBigs(j.Amounts)
	if err != nil {
		return zeroH, zeroA, zeroA, nil, nil, fmt.Errorf("parse amounts: %w", err)
	}
	shares, err := parseBig(j.Shares)
	if err != nil {
		return zeroH, zeroA, zeroA, nil, nil, fmt.Errorf("parse shares: %w", err)
	}
	return txHash, market, funder, amounts, shares, nil
}

type marketMakerRegisteredJSON struct {
	Market        string   `json:"market"`
	ConditionID   string   `json:"condition_id"`
	OutcomeCount  int      `json:"outcome_count"`
	OutcomePrices []string `json:"outcome_prices"`
	chainRefJSON
}

func parseMarketMakerRegistered(data []byte) (*event.MarketMakerRegistered, error) {
	var j marketMakerRegisteredJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse MarketMakerRegistered: %w", err)
	}
	txHash, err := j.validate("MarketMakerRegistered")
	if err != nil {
		return nil, err
	}
	market, err := parseAddress(j.Market)
	if err != nil {
		return nil, fmt.Errorf("parse market: %w", err)
	}
	conditionID, err := parseHash(j.ConditionID)
	if err != nil {
		return nil, fmt.Errorf("parse condition_id: %w", err)
	}
	if j.OutcomeCount < 2 {
		return nil, fmt.Errorf("outcome_count %d below minimum of 2", j.OutcomeCount)
	}
	prices := make([]decimal.Decimal, 0, len(j.OutcomePrices))
	for _, p := range j.OutcomePrices {
		d, err := decimal.NewFromString(p)
		if err != nil {
			return nil, fmt.Errorf("parse outcome_prices: %w", err)
		}
		prices = append(prices, d)
	}

	return &event.MarketMakerRegistered{
		Market:        market,
		ConditionID:   conditionID,
		OutcomeCount:  j.OutcomeCount,
		OutcomePrices: prices,
		TxHash:        txHash,
		Block:         j.Block,
		TxIndex:       j.TxIndex,
		LogIndex:      j.LogIndex,
		Timestamp:     time.UnixMicro(j.TimestampUs),
	}, nil
}

// --- Field parsers ---

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("malformed address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(s string) (common.Hash, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if len(trimmed) != 64 {
		return common.Hash{}, fmt.Errorf("malformed hash %q", s)
	}
	return common.HexToHash(s), nil
}

func parseBig(s string) (*big.Int, error) {
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
