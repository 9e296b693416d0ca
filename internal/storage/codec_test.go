package storage_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"OutcomeLedger/internal/event"
	"OutcomeLedger/internal/ledger"
	"OutcomeLedger/internal/state"
	"OutcomeLedger/internal/storage"
)

var (
	testConditionID = common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testQuestionID  = common.HexToHash("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testTxHash      = common.HexToHash("0xcccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc")
	testOracle      = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testAccount     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testMarket      = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// ============================================================================
// Test: Condition codec
// ============================================================================

func TestConditionCodec_Open(t *testing.T) {
	cond := &state.Condition{
		ID:               testConditionID,
		Oracle:           testOracle,
		QuestionID:       testQuestionID,
		OutcomeSlotCount: 2,
		MarketMakers:     []common.Address{testMarket},
		State:            state.ConditionStateOpen,
		Version:          3,
	}

	rec := storage.EncodeCondition(cond)
	if rec.Kind != storage.KindCondition {
		t.Errorf("kind: got %q, want %q", rec.Kind, storage.KindCondition)
	}
	if rec.Key != testConditionID.Hex() {
		t.Errorf("key: got %q, want %q", rec.Key, testConditionID.Hex())
	}

	got, err := storage.DecodeCondition(rec.Value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != cond.ID || got.Oracle != cond.Oracle || got.QuestionID != cond.QuestionID {
		t.Error("identity fields did not round-trip")
	}
	if got.OutcomeSlotCount != 2 || got.Version != 3 {
		t.Errorf("slots=%d version=%d, want 2/3", got.OutcomeSlotCount, got.Version)
	}
	if got.Resolved() {
		t.Error("open condition decoded as resolved")
	}
	if len(got.MarketMakers) != 1 || got.MarketMakers[0] != testMarket {
		t.Errorf("market makers: got %v", got.MarketMakers)
	}
}

func TestConditionCodec_Resolved(t *testing.T) {
	resolvedAt := time.UnixMicro(1700000000000000)
	cond := &state.Condition{
		ID:                  testConditionID,
		Oracle:              testOracle,
		QuestionID:          testQuestionID,
		OutcomeSlotCount:    2,
		State:               state.ConditionStateResolved,
		PayoutNumerators:    []*big.Int{big.NewInt(3), big.NewInt(1)},
		PayoutDenominator:   big.NewInt(4),
		PayoutFractions:     []decimal.Decimal{decimal.NewFromFloat(0.75), decimal.NewFromFloat(0.25)},
		ResolutionTimestamp: resolvedAt,
		ResolutionTx:        testTxHash,
		Version:             1,
	}

	got, err := storage.DecodeCondition(storage.EncodeCondition(cond).Value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Resolved() {
		t.Fatal("resolved condition decoded as open")
	}
	if got.PayoutDenominator.Cmp(big.NewInt(4)) != 0 {
		t.Errorf("denominator: got %s, want 4", got.PayoutDenominator)
	}
	if got.PayoutNumerators[0].Cmp(big.NewInt(3)) != 0 || got.PayoutNumerators[1].Cmp(big.NewInt(1)) != 0 {
		t.Errorf("numerators: got %v", got.PayoutNumerators)
	}
	if !got.PayoutFractions[0].Equal(decimal.NewFromFloat(0.75)) {
		t.Errorf("fraction[0]: got %s, want 0.75", got.PayoutFractions[0])
	}
	if !got.ResolutionTimestamp.Equal(resolvedAt) {
		t.Errorf("resolved at: got %s, want %s", got.ResolutionTimestamp, resolvedAt)
	}
	if got.ResolutionTx != testTxHash {
		t.Errorf("resolution tx: got %s, want %s", got.ResolutionTx.Hex(), testTxHash.Hex())
	}
}

// ============================================================================
// Test: Position codec
// ============================================================================

func TestPositionCodec(t *testing.T) {
	pos := ledger.NewMarketPosition(ledger.PositionKey{Account: testAccount, Market: testMarket, Outcome: 1})
	pos.QuantityBought.SetInt64(100)
	pos.QuantitySold.SetInt64(40)
	pos.ValueBought.SetInt64(60)
	pos.ValueSold.SetInt64(30)
	pos.Recompute()

	rec := storage.EncodePosition(pos)
	if rec.Kind != storage.KindPosition {
		t.Errorf("kind: got %q, want %q", rec.Kind, storage.KindPosition)
	}
	if rec.Key != pos.Key().String() {
		t.Errorf("key: got %q, want %q", rec.Key, pos.Key().String())
	}

	got, err := storage.DecodePosition(rec.Value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Key() != pos.Key() {
		t.Error("position key did not round-trip")
	}
	if got.NetQuantity.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("net quantity: got %s, want 60", got.NetQuantity)
	}
	if got.NetValue.Cmp(big.NewInt(30)) != 0 {
		t.Errorf("net value: got %s, want 30", got.NetValue)
	}
	if got.Version != pos.Version {
		t.Errorf("version: got %d, want %d", got.Version, pos.Version)
	}
}

func TestPositionCodec_RejectsMalformedInteger(t *testing.T) {
	if _, err := storage.DecodePosition([]byte(`{"quantity_bought":"not-a-number"}`)); err == nil {
		t.Error("got nil error for malformed integer, want error")
	}
}

// ============================================================================
// Test: Stats codec
// ============================================================================

func TestStatsCodec(t *testing.T) {
	st := state.NewStatsTracker(6)
	st.ConditionPrepared()
	st.RecordTrade(event.TradeTypeBuy, big.NewInt(1_000_000), big.NewInt(5_000))
	st.OpenInterestAdd(big.NewInt(42))

	rec := storage.EncodeStats(st.Stats())
	if rec.Kind != storage.KindStats || rec.Key != storage.StatsKey {
		t.Errorf("record identity: got %q/%q", rec.Kind, rec.Key)
	}

	got, err := storage.DecodeStats(rec.Value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ConditionsPrepared != 1 || got.TradeCount != 1 || got.BuyCount != 1 {
		t.Errorf("counters: prepared=%d trades=%d buys=%d", got.ConditionsPrepared, got.TradeCount, got.BuyCount)
	}
	if got.CollateralVolume.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("volume: got %s, want 1000000", got.CollateralVolume)
	}
	if !got.ScaledCollateralVolume.Equal(decimal.NewFromInt(1)) {
		t.Errorf("scaled volume: got %s, want 1", got.ScaledCollateralVolume)
	}
	if got.OpenInterest.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("open interest: got %s, want 42", got.OpenInterest)
	}
}

// ============================================================================
// Test: Transaction / account / neg-risk codecs
// ============================================================================

func TestTransactionCodec(t *testing.T) {
	tx := &state.Transaction{
		TxHash:           testTxHash,
		Type:             event.TradeTypeSell,
		Account:          testAccount,
		Market:           testMarket,
		OutcomeIndex:     1,
		TokenAmount:      big.NewInt(50),
		CollateralAmount: big.NewInt(25),
		FeeAmount:        big.NewInt(1),
		Timestamp:        time.UnixMicro(1700000000000000),
	}

	got, err := storage.DecodeTransaction(storage.EncodeTransaction(tx).Value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TxHash != tx.TxHash || got.Type != event.TradeTypeSell {
		t.Error("identity fields did not round-trip")
	}
	if got.TokenAmount.Cmp(big.NewInt(50)) != 0 || got.CollateralAmount.Cmp(big.NewInt(25)) != 0 {
		t.Errorf("amounts: token=%s collateral=%s", got.TokenAmount, got.CollateralAmount)
	}
	if !got.Timestamp.Equal(tx.Timestamp) {
		t.Errorf("timestamp: got %s, want %s", got.Timestamp, tx.Timestamp)
	}
}

func TestAccountCodec(t *testing.T) {
	firstSeen := time.UnixMicro(1700000000000000)
	rec := storage.EncodeAccount(testAccount, firstSeen)

	account, ts, err := storage.DecodeAccount(rec.Value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if account != testAccount {
		t.Errorf("account: got %s, want %s", account.Hex(), testAccount.Hex())
	}
	if !ts.Equal(firstSeen) {
		t.Errorf("first seen: got %s, want %s", ts, firstSeen)
	}
}

func TestNegRiskCodec(t *testing.T) {
	aux := &state.NegRiskPosition{
		ID:          state.DerivedPositionID(testConditionID, 1),
		ConditionID: testConditionID,
		Outcome:     1,
	}

	got, err := storage.DecodeNegRisk(storage.EncodeNegRisk(aux).Value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != aux.ID || got.ConditionID != aux.ConditionID || got.Outcome != 1 {
		t.Errorf("got %+v, want %+v", got, aux)
	}
}
