package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// EventLogWriter writes applied-event rows to Postgres using multi-row
// INSERT. The events table doubles as the durable idempotency tier: the
// unique (event_type, idempotency_key) index makes replayed flushes
// no-ops via ON CONFLICT DO NOTHING.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in ledger.events.
type EventRow struct {
	EventType      string
	IdempotencyKey string
	RunID          string
	Block          uint64
	TxIndex        uint32
	LogIndex       uint32
	EventTime      time.Time
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of event rows inside the given transaction.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO ledger.events
		(event_type, idempotency_key, run_id, block, tx_index, log_index, event_time)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*7)

	for i, e := range events {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			e.EventType, e.IdempotencyKey, e.RunID,
			int64(e.Block), int32(e.TxIndex), int32(e.LogIndex), e.EventTime,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (event_type, idempotency_key) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// RecentKeys returns the newest composite applied keys ("EventType:key"),
// used to warm the in-memory idempotency tier on startup.
func (w *EventLogWriter) RecentKeys(ctx context.Context, limit int) ([]string, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT event_type, idempotency_key
		FROM ledger.events
		ORDER BY block DESC, tx_index DESC, log_index DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var eventType, key string
		if err := rows.Scan(&eventType, &key); err != nil {
			return nil, err
		}
		keys = append(keys, eventType+":"+key)
	}
	return keys, rows.Err()
}

// DB exposes the underlying handle for transaction control.
func (w *EventLogWriter) DB() *sql.DB {
	return w.db
}
