package state

import (
	fpmath "OutcomeLedger/internal/math"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

var (
	// ErrConditionNotFound marks a resolution or position event that
	// references a condition this ledger never saw prepared.
	ErrConditionNotFound = errors.New("condition not found")

	// ErrDegenerateResolution marks a payout vector summing to zero.
	// The resolution is rejected and the condition stays Open.
	ErrDegenerateResolution = errors.New("degenerate resolution: payout denominator is zero")

	// ErrMalformedPayoutVector marks a payout vector whose length differs
	// from the condition's outcome slot count. The resolution is rejected
	// and the condition stays Open.
	ErrMalformedPayoutVector = errors.New("payout vector length differs from outcome slot count")
)

// ConditionRegistry manages condition lifecycle: preparation, resolution
// and payout-vector computation.
// Not thread-safe; only accessed from the single-threaded dispatch loop.
type ConditionRegistry struct {
	conditions map[common.Hash]*Condition

	// Auxiliary neg-risk records keyed by condition
	negRisk map[common.Hash][]*NegRiskPosition

	// Conditions prepared by this oracle get two pre-registered
	// auxiliary records for the binary-converted accounting scheme.
	riskTransferOracle common.Address

	log zerolog.Logger
}

func NewConditionRegistry(riskTransferOracle common.Address, log zerolog.Logger) *ConditionRegistry {
	return &ConditionRegistry{
		conditions:         make(map[common.Hash]*Condition),
		negRisk:            make(map[common.Hash][]*NegRiskPosition),
		riskTransferOracle: riskTransferOracle,
		log:                log,
	}
}

// Prepare creates an Open condition with an empty market-maker set. If the
// oracle is the designated risk-transfer oracle, two per-outcome auxiliary
// records with derived position identifiers are pre-registered alongside.
// Re-preparation of a known condition returns the existing record.
func (r *ConditionRegistry) Prepare(
	id common.Hash,
	oracle common.Address,
	questionID common.Hash,
	outcomeSlotCount int,
) (*Condition, []*NegRiskPosition) {
	if existing, ok := r.conditions[id]; ok {
		r.log.Debug().Str("condition", id.Hex()).Msg("condition already prepared, replay ignored")
		return existing, r.negRisk[id]
	}

	cond := &Condition{
		ID:               id,
		Oracle:           oracle,
		QuestionID:       questionID,
		OutcomeSlotCount: outcomeSlotCount,
		State:            ConditionStateOpen,
	}
	r.conditions[id] = cond

	var aux []*NegRiskPosition
	if oracle == r.riskTransferOracle && r.riskTransferOracle != (common.Address{}) {
		aux = make([]*NegRiskPosition, 0, 2)
		for outcome := 0; outcome < 2; outcome++ {
			aux = append(aux, &NegRiskPosition{
				ID:          DerivedPositionID(id, outcome),
				ConditionID: id,
				Outcome:     outcome,
			})
		}
		r.negRisk[id] = aux
	}

	return cond, aux
}

// Resolve computes the payout denominator and normalized fraction vector
// and transitions the condition to Resolved. A second resolution of the
// same condition overwrites the payout vector (each condition is expected
// to resolve exactly once upstream) without re-moving lifecycle counters.
func (r *ConditionRegistry) Resolve(
	id common.Hash,
	payoutNumerators []*big.Int,
	ts time.Time,
	txRef common.Hash,
) (*Condition, bool, error) {
	cond, ok := r.conditions[id]
	if !ok {
		return nil, false, fmt.Errorf("resolve %s: %w", id.Hex(), ErrConditionNotFound)
	}

	denominator := fpmath.SumBig(payoutNumerators)
	if denominator.Sign() == 0 {
		return nil, false, fmt.Errorf("resolve %s: %w", id.Hex(), ErrDegenerateResolution)
	}

	if len(payoutNumerators) != cond.OutcomeSlotCount {
		return nil, false, fmt.Errorf("resolve %s: %d numerators for %d outcome slots: %w",
			id.Hex(), len(payoutNumerators), cond.OutcomeSlotCount, ErrMalformedPayoutVector)
	}

	transitioned := cond.State == ConditionStateOpen

	cond.PayoutNumerators = payoutNumerators
	cond.PayoutDenominator = denominator
	cond.PayoutFractions = fpmath.PayoutFractions(payoutNumerators, denominator)
	cond.ResolutionTimestamp = ts
	cond.ResolutionTx = txRef
	cond.State = ConditionStateResolved
	cond.Version++

	return cond, transitioned, nil
}

// Lookup returns the condition or "not found".
func (r *ConditionRegistry) Lookup(id common.Hash) (*Condition, bool) {
	cond, ok := r.conditions[id]
	return cond, ok
}

// Restore installs a condition directly (used for warm restore).
func (r *ConditionRegistry) Restore(cond *Condition) {
	r.conditions[cond.ID] = cond
}

// RestoreNegRisk installs an auxiliary record directly (warm restore).
func (r *ConditionRegistry) RestoreNegRisk(aux *NegRiskPosition) {
	r.negRisk[aux.ConditionID] = append(r.negRisk[aux.ConditionID], aux)
}

// Len returns the number of known conditions.
func (r *ConditionRegistry) Len() int {
	return len(r.conditions)
}

// DerivedPositionID deterministically derives the auxiliary position
// identifier for one outcome of a binary-converted condition.
func DerivedPositionID(conditionID common.Hash, outcome int) common.Hash {
	return crypto.Keccak256Hash(conditionID.Bytes(), []byte{byte(outcome)})
}
