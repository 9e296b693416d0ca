package state

import (
	"OutcomeLedger/internal/event"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrTransactionNotFound marks a trade whose originating transaction
// context cannot be located. There is no safe partial accounting for it:
// the handler invocation must abort loudly.
var ErrTransactionNotFound = errors.New("trade transaction context not found")

// Transaction is the originating context of a trade: who traded what on
// which market and outcome. Recorded when the trade event arrives and
// looked up by the position-ledger update.
type Transaction struct {
	TxHash           common.Hash
	Type             event.TradeType
	Account          common.Address
	Market           common.Address
	OutcomeIndex     int
	TokenAmount      *big.Int
	CollateralAmount *big.Int
	FeeAmount        *big.Int
	Timestamp        time.Time
}

// TransactionStore keeps trade transaction contexts addressable by
// transaction hash.
// Not thread-safe; only accessed from the single-threaded dispatch loop.
type TransactionStore struct {
	byHash map[common.Hash]*Transaction
}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		byHash: make(map[common.Hash]*Transaction),
	}
}

// Record stores the context for its transaction hash. Replays overwrite
// with identical content.
func (s *TransactionStore) Record(tx *Transaction) {
	s.byHash[tx.TxHash] = tx
}

// Lookup returns the context or "not found".
func (s *TransactionStore) Lookup(txHash common.Hash) (*Transaction, bool) {
	tx, ok := s.byHash[txHash]
	return tx, ok
}

// Len returns the number of recorded contexts.
func (s *TransactionStore) Len() int {
	return len(s.byHash)
}
