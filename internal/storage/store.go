// Package storage provides the durable entity store the engine reads from
// and writes to. The contract is deliberately narrow: point lookups by
// key, upserts, and a per-kind scan for warm restore. No transactions
// across unrelated keys are required.
package storage

import (
	"context"
)

// Entity kinds. The (kind, key) pair addresses every record the engine
// produces.
const (
	KindCondition   = "condition"
	KindPosition    = "position"
	KindMarketMaker = "marketmaker"
	KindAccount     = "account"
	KindStats       = "stats"
	KindNegRisk     = "negrisk"
	KindTransaction = "transaction"
)

// StatsKey is the fixed key of the singleton GlobalStats record.
const StatsKey = "global"

// Record is one upsert-able entity row.
type Record struct {
	Kind  string
	Key   string
	Value []byte
}

// EntityStore is the narrow durable-storage contract.
type EntityStore interface {
	// Put upserts the records. Records of unrelated keys carry no
	// atomicity guarantee across each other.
	Put(ctx context.Context, records []Record) error

	// Get performs a point lookup. The second return is false when the
	// key is unknown.
	Get(ctx context.Context, kind, key string) ([]byte, bool, error)

	// Scan visits every record of a kind (warm restore).
	Scan(ctx context.Context, kind string, fn func(key string, value []byte) error) error

	Close() error
}
