package ingestion_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"OutcomeLedger/internal/event"
	"OutcomeLedger/internal/ingestion"
)

const (
	testTxHash      = "0x1111111111111111111111111111111111111111111111111111111111111111"
	testConditionID = "0x2222222222222222222222222222222222222222222222222222222222222222"
	testQuestionID  = "0x3333333333333333333333333333333333333333333333333333333333333333"
	testAccount     = "0x4444444444444444444444444444444444444444"
	testMarket      = "0x5555555555555555555555555555555555555555"
	testOracle      = "0x6666666666666666666666666666666666666666"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func chainFields(payload map[string]interface{}) map[string]interface{} {
	payload["tx_hash"] = testTxHash
	payload["block"] = uint64(18_000_000)
	payload["tx_index"] = uint32(3)
	payload["log_index"] = uint32(7)
	payload["timestamp_us"] = int64(1_700_000_000_000_000)
	return payload
}

func TestParseConditionPrepared(t *testing.T) {
	payload := chainFields(map[string]interface{}{
		"condition_id":       testConditionID,
		"oracle":             testOracle,
		"question_id":        testQuestionID,
		"outcome_slot_count": 2,
	})

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "ConditionPrepared")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cp, ok := evt.(*event.ConditionPrepared)
	if !ok {
		t.Fatalf("expected *event.ConditionPrepared, got %T", evt)
	}

	if cp.ConditionID != common.HexToHash(testConditionID) {
		t.Errorf("condition_id: got %s", cp.ConditionID.Hex())
	}
	if cp.Oracle != common.HexToAddress(testOracle) {
		t.Errorf("oracle: got %s", cp.Oracle.Hex())
	}
	if cp.OutcomeSlotCount != 2 {
		t.Errorf("outcome_slot_count: got %d, want 2", cp.OutcomeSlotCount)
	}
	if cp.EventType() != event.EventTypeConditionPrepared {
		t.Errorf("event type: got %v", cp.EventType())
	}
	if cp.IdempotencyKey() != common.HexToHash(testTxHash).Hex() {
		t.Errorf("idempotency key: got %s", cp.IdempotencyKey())
	}
	if cp.Order().Block != 18_000_000 {
		t.Errorf("order block: got %d", cp.Order().Block)
	}
}

func TestParseConditionPreparedRejectsBadSlotCount(t *testing.T) {
	payload := chainFields(map[string]interface{}{
		"condition_id":       testConditionID,
		"oracle":             testOracle,
		"question_id":        testQuestionID,
		"outcome_slot_count": 1,
	})

	if _, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "ConditionPrepared"); err == nil {
		t.Fatal("expected error for outcome_slot_count=1")
	}
}

func TestParseConditionResolution(t *testing.T) {
	payload := chainFields(map[string]interface{}{
		"condition_id":      testConditionID,
		"payout_numerators": []string{"3", "1"},
	})

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "ConditionResolution")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cr := evt.(*event.ConditionResolution)
	if len(cr.PayoutNumerators) != 2 {
		t.Fatalf("numerators: got %d, want 2", len(cr.PayoutNumerators))
	}
	if cr.PayoutNumerators[0].Int64() != 3 || cr.PayoutNumerators[1].Int64() != 1 {
		t.Errorf("numerators: got [%s %s], want [3 1]",
			cr.PayoutNumerators[0], cr.PayoutNumerators[1])
	}
}

func TestParsePositionSplit(t *testing.T) {
	payload := chainFields(map[string]interface{}{
		"stakeholder":          testAccount,
		"collateral_token":     testMarket,
		"parent_collection_id": "0x0000000000000000000000000000000000000000000000000000000000000000",
		"condition_id":         testConditionID,
		"partition":            []string{"1", "2"},
		"amount":               "1000000000000000000",
	})

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "PositionSplit")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	ps := evt.(*event.PositionSplit)
	if ps.Stakeholder != common.HexToAddress(testAccount) {
		t.Errorf("stakeholder: got %s", ps.Stakeholder.Hex())
	}
	if len(ps.Partition) != 2 {
		t.Fatalf("partition: got %d masks, want 2", len(ps.Partition))
	}
	if ps.Amount.String() != "1000000000000000000" {
		t.Errorf("amount: got %s", ps.Amount)
	}

	actor, ok := ps.Actor()
	if !ok || actor != ps.Stakeholder {
		t.Errorf("actor: got (%s, %v)", actor.Hex(), ok)
	}

	// Two logs in the same tx must not collide.
	other := *ps
	other.LogIndex = 8
	if ps.IdempotencyKey() == other.IdempotencyKey() {
		t.Error("idempotency keys collide across log indexes")
	}
}

func TestParseTrade(t *testing.T) {
	payload := chainFields(map[string]interface{}{
		"type":              "sell",
		"account":           testAccount,
		"market":            testMarket,
		"outcome_index":     1,
		"token_amount":      "500000",
		"collateral_amount": "250000",
		"fee_amount":        "1250",
	})

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "Trade")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	tr := evt.(*event.Trade)
	if tr.Type != event.TradeTypeSell {
		t.Errorf("type: got %v, want Sell", tr.Type)
	}
	if tr.OutcomeIndex != 1 {
		t.Errorf("outcome_index: got %d, want 1", tr.OutcomeIndex)
	}
	if tr.CollateralAmount.String() != "250000" {
		t.Errorf("collateral_amount: got %s", tr.CollateralAmount)
	}
	if tr.Timestamp.UnixMicro() != 1_700_000_000_000_000 {
		t.Errorf("timestamp: got %d", tr.Timestamp.UnixMicro())
	}
}

func TestParseLiquidityAdded(t *testing.T) {
	payload := chainFields(map[string]interface{}{
		"market":  testMarket,
		"funder":  testAccount,
		"amounts": []string{"100", "40"},
		"shares":  "100",
	})

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "LiquidityAdded")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	la := evt.(*event.LiquidityAdded)
	if len(la.AmountsAdded) != 2 {
		t.Fatalf("amounts: got %d, want 2", len(la.AmountsAdded))
	}
	if la.SharesMinted.String() != "100" {
		t.Errorf("shares: got %s", la.SharesMinted)
	}
}

func TestParseMarketMakerRegistered(t *testing.T) {
	payload := chainFields(map[string]interface{}{
		"market":         testMarket,
		"condition_id":   testConditionID,
		"outcome_count":  2,
		"outcome_prices": []string{"0.65", "0.35"},
	})

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "MarketMakerRegistered")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	mm := evt.(*event.MarketMakerRegistered)
	if mm.OutcomeCount != 2 {
		t.Errorf("outcome_count: got %d, want 2", mm.OutcomeCount)
	}
	if mm.OutcomePrices[0].String() != "0.65" {
		t.Errorf("price[0]: got %s, want 0.65", mm.OutcomePrices[0])
	}
	if _, ok := mm.Actor(); ok {
		t.Error("market maker registration should carry no actor")
	}
}

func TestParseRejectsMalformedFields(t *testing.T) {
	cases := []struct {
		name      string
		eventType string
		payload   map[string]interface{}
	}{
		{
			name:      "bad address",
			eventType: "Trade",
			payload: chainFields(map[string]interface{}{
				"type": "buy", "account": "not-an-address", "market": testMarket,
				"outcome_index": 0, "token_amount": "1", "collateral_amount": "1", "fee_amount": "0",
			}),
		},
		{
			name:      "bad amount",
			eventType: "Trade",
			payload: chainFields(map[string]interface{}{
				"type": "buy", "account": testAccount, "market": testMarket,
				"outcome_index": 0, "token_amount": "1.5", "collateral_amount": "1", "fee_amount": "0",
			}),
		},
		{
			name:      "short hash",
			eventType: "ConditionResolution",
			payload: map[string]interface{}{
				"condition_id": "0x1234", "payout_numerators": []string{"1"},
				"tx_hash": testTxHash, "block": 1, "timestamp_us": 1,
			},
		},
		{
			name:      "empty numerators",
			eventType: "ConditionResolution",
			payload: chainFields(map[string]interface{}{
				"condition_id": testConditionID, "payout_numerators": []string{},
			}),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ingestion.ParseRawEvent(rawFromJSON(t, tc.payload), tc.eventType); err == nil {
				t.Errorf("expected parse error")
			}
		})
	}
}

func TestParseUnknownEventType(t *testing.T) {
	raw := rawFromJSON(t, map[string]interface{}{})
	if _, err := ingestion.ParseRawEvent(raw, "SomethingElse"); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}
