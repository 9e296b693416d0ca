package state_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"OutcomeLedger/internal/state"
)

var (
	testConditionID = common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testQuestionID  = common.HexToHash("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testOracle      = common.HexToAddress("0x3333333333333333333333333333333333333333")
	riskOracle      = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testTxHash      = common.HexToHash("0xcccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc")
)

func newRegistry() *state.ConditionRegistry {
	return state.NewConditionRegistry(riskOracle, zerolog.Nop())
}

// ============================================================================
// Test: Prepare
// ============================================================================

func TestPrepare_CreatesOpenCondition(t *testing.T) {
	r := newRegistry()
	cond, aux := r.Prepare(testConditionID, testOracle, testQuestionID, 2)

	if cond.State != state.ConditionStateOpen {
		t.Errorf("state: got %s, want Open", cond.State)
	}
	if cond.OutcomeSlotCount != 2 {
		t.Errorf("outcome slots: got %d, want 2", cond.OutcomeSlotCount)
	}
	if len(cond.MarketMakers) != 0 {
		t.Errorf("market makers: got %d, want 0", len(cond.MarketMakers))
	}
	if aux != nil {
		t.Errorf("got %d aux records for a regular oracle, want none", len(aux))
	}
	if r.Len() != 1 {
		t.Errorf("registry size: got %d, want 1", r.Len())
	}
}

func TestPrepare_ReplayReturnsExisting(t *testing.T) {
	r := newRegistry()
	first, _ := r.Prepare(testConditionID, testOracle, testQuestionID, 2)
	first.AttachMarketMaker(common.HexToAddress("0x5555555555555555555555555555555555555555"))

	second, _ := r.Prepare(testConditionID, testOracle, testQuestionID, 2)
	if second != first {
		t.Error("replayed prepare returned a different record")
	}
	if len(second.MarketMakers) != 1 {
		t.Errorf("market makers lost on replay: got %d, want 1", len(second.MarketMakers))
	}
	if r.Len() != 1 {
		t.Errorf("registry size: got %d, want 1", r.Len())
	}
}

func TestPrepare_RiskTransferOracleGetsAuxRecords(t *testing.T) {
	r := newRegistry()
	_, aux := r.Prepare(testConditionID, riskOracle, testQuestionID, 2)

	if len(aux) != 2 {
		t.Fatalf("got %d aux records, want 2", len(aux))
	}
	for outcome, record := range aux {
		if record.Outcome != outcome {
			t.Errorf("aux[%d] outcome: got %d, want %d", outcome, record.Outcome, outcome)
		}
		if record.ConditionID != testConditionID {
			t.Errorf("aux[%d] condition: got %s, want %s", outcome, record.ConditionID.Hex(), testConditionID.Hex())
		}
		want := state.DerivedPositionID(testConditionID, outcome)
		if record.ID != want {
			t.Errorf("aux[%d] id: got %s, want %s", outcome, record.ID.Hex(), want.Hex())
		}
	}
}

func TestDerivedPositionID_Deterministic(t *testing.T) {
	a := state.DerivedPositionID(testConditionID, 0)
	b := state.DerivedPositionID(testConditionID, 0)
	if a != b {
		t.Error("same inputs produced different ids")
	}
	if a == state.DerivedPositionID(testConditionID, 1) {
		t.Error("different outcomes produced the same id")
	}
}

// ============================================================================
// Test: Resolve
// ============================================================================

func TestResolve_ComputesPayoutVector(t *testing.T) {
	r := newRegistry()
	r.Prepare(testConditionID, testOracle, testQuestionID, 2)

	ts := time.Unix(1700000000, 0)
	cond, transitioned, err := r.Resolve(
		testConditionID,
		[]*big.Int{big.NewInt(3), big.NewInt(1)},
		ts, testTxHash,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !transitioned {
		t.Error("got transitioned false, want true")
	}
	if !cond.Resolved() {
		t.Error("condition not marked resolved")
	}
	if cond.PayoutDenominator.Cmp(big.NewInt(4)) != 0 {
		t.Errorf("denominator: got %s, want 4", cond.PayoutDenominator)
	}
	if !cond.PayoutFractions[0].Equal(decimal.NewFromFloat(0.75)) {
		t.Errorf("fraction[0]: got %s, want 0.75", cond.PayoutFractions[0])
	}
	if !cond.PayoutFractions[1].Equal(decimal.NewFromFloat(0.25)) {
		t.Errorf("fraction[1]: got %s, want 0.25", cond.PayoutFractions[1])
	}
	if !cond.ResolutionTimestamp.Equal(ts) {
		t.Errorf("timestamp: got %s, want %s", cond.ResolutionTimestamp, ts)
	}
	if cond.ResolutionTx != testTxHash {
		t.Errorf("tx: got %s, want %s", cond.ResolutionTx.Hex(), testTxHash.Hex())
	}

	sum := cond.PayoutFractions[0].Add(cond.PayoutFractions[1])
	if !sum.Equal(decimal.NewFromInt(1)) {
		t.Errorf("fractions sum: got %s, want 1", sum)
	}
}

func TestResolve_DegenerateVectorRejected(t *testing.T) {
	r := newRegistry()
	r.Prepare(testConditionID, testOracle, testQuestionID, 2)

	_, _, err := r.Resolve(
		testConditionID,
		[]*big.Int{big.NewInt(0), big.NewInt(0)},
		time.Now(), testTxHash,
	)
	if !errors.Is(err, state.ErrDegenerateResolution) {
		t.Fatalf("got %v, want ErrDegenerateResolution", err)
	}

	cond, _ := r.Lookup(testConditionID)
	if cond.Resolved() {
		t.Error("condition resolved despite degenerate payout vector")
	}
}

func TestResolve_MalformedVectorRejected(t *testing.T) {
	r := newRegistry()
	r.Prepare(testConditionID, testOracle, testQuestionID, 2)

	_, _, err := r.Resolve(
		testConditionID,
		[]*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(1)},
		time.Now(), testTxHash,
	)
	if !errors.Is(err, state.ErrMalformedPayoutVector) {
		t.Fatalf("got %v, want ErrMalformedPayoutVector", err)
	}

	cond, _ := r.Lookup(testConditionID)
	if cond.Resolved() {
		t.Error("condition resolved despite mismatched payout vector length")
	}
	if cond.PayoutNumerators != nil {
		t.Error("mismatched payout vector was stored")
	}
}

func TestResolve_UnknownCondition(t *testing.T) {
	r := newRegistry()
	_, _, err := r.Resolve(
		testConditionID,
		[]*big.Int{big.NewInt(1), big.NewInt(0)},
		time.Now(), testTxHash,
	)
	if !errors.Is(err, state.ErrConditionNotFound) {
		t.Fatalf("got %v, want ErrConditionNotFound", err)
	}
}

func TestResolve_SecondResolutionOverwritesWithoutTransition(t *testing.T) {
	r := newRegistry()
	r.Prepare(testConditionID, testOracle, testQuestionID, 2)

	_, transitioned, err := r.Resolve(testConditionID, []*big.Int{big.NewInt(1), big.NewInt(0)}, time.Now(), testTxHash)
	if err != nil || !transitioned {
		t.Fatalf("first resolve: err=%v transitioned=%v", err, transitioned)
	}

	cond, transitioned, err := r.Resolve(testConditionID, []*big.Int{big.NewInt(0), big.NewInt(1)}, time.Now(), testTxHash)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if transitioned {
		t.Error("got transitioned true on re-resolution, want false")
	}
	if cond.PayoutNumerators[1].Cmp(big.NewInt(1)) != 0 {
		t.Error("re-resolution did not overwrite the payout vector")
	}
}

// ============================================================================
// Test: AttachMarketMaker
// ============================================================================

func TestAttachMarketMaker_DuplicateFree(t *testing.T) {
	r := newRegistry()
	cond, _ := r.Prepare(testConditionID, testOracle, testQuestionID, 2)

	mm := common.HexToAddress("0x5555555555555555555555555555555555555555")
	if !cond.AttachMarketMaker(mm) {
		t.Error("first attach: got false, want true")
	}
	if cond.AttachMarketMaker(mm) {
		t.Error("duplicate attach: got true, want false")
	}
	if len(cond.MarketMakers) != 1 {
		t.Errorf("market makers: got %d, want 1", len(cond.MarketMakers))
	}
}
