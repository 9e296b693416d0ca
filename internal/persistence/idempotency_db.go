package persistence

import (
	"context"
	"database/sql"
	"time"

	"OutcomeLedger/internal/event"
)

// PostgresAppliedChecker is the durable tier behind the engine's in-memory
// applied-key LRU. A row in ledger.events means the event's effects were
// committed.
type PostgresAppliedChecker struct {
	db *sql.DB
}

func NewPostgresAppliedChecker(db *sql.DB) *PostgresAppliedChecker {
	return &PostgresAppliedChecker{db: db}
}

// WasApplied checks whether the event exists in the applied-event log.
func (c *PostgresAppliedChecker) WasApplied(eventType event.EventType, idempotencyKey string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var exists int
	err := c.db.QueryRowContext(ctx, `
        SELECT 1
        FROM ledger.events
        WHERE event_type = $1 AND idempotency_key = $2
        LIMIT 1
    `, eventType.String(), idempotencyKey).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
