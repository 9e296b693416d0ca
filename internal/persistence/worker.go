package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"OutcomeLedger/internal/core"
	"OutcomeLedger/internal/observability"
	"OutcomeLedger/internal/storage"
)

// Worker drains the engine's persist channel and flushes in batches:
// event rows into Postgres (the audit log and durable idempotency tier)
// and entity records into the entity store. The persist channel uses
// BLOCKING sends from the engine, so if this worker falls behind, the
// engine stalls and no event is ever lost.
type Worker struct {
	writer       *EventLogWriter
	store        storage.EntityStore
	inputChan    <-chan core.Output
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	store storage.EntityStore,
	inputChan <-chan core.Output,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		writer:       NewEventLogWriter(db),
		store:        store,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          log,
	}
}

// Run starts the worker loop. It batches incoming outputs and flushes when
// the batch is full or the flush timeout expires. Blocks until ctx is
// cancelled or the input channel is closed.
func (w *Worker) Run(ctx context.Context) error {
	eventBatch := make([]EventRow, 0, w.batchSize)
	recordBatch := make([]storage.Record, 0, w.batchSize*4)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(eventBatch) > 0 {
				if err := w.flush(context.Background(), eventBatch, recordBatch); err != nil {
					w.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case output, ok := <-w.inputChan:
			if !ok {
				if len(eventBatch) > 0 {
					if err := w.flush(context.Background(), eventBatch, recordBatch); err != nil {
						w.log.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			eventBatch = append(eventBatch, toEventRow(output))
			recordBatch = append(recordBatch, output.Records...)

			if len(eventBatch) >= w.batchSize {
				if err := w.flushWithRetry(ctx, eventBatch, recordBatch); err != nil {
					w.log.Error().Err(err).Msg("batch flush failed after retries")
				}
				eventBatch = eventBatch[:0]
				recordBatch = recordBatch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(eventBatch) > 0 {
				if err := w.flushWithRetry(ctx, eventBatch, recordBatch); err != nil {
					w.log.Error().Err(err).Msg("timeout flush failed after retries")
				}
				eventBatch = eventBatch[:0]
				recordBatch = recordBatch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

func toEventRow(output core.Output) EventRow {
	runID := ""
	if output.RunID != uuid.Nil {
		runID = output.RunID.String()
	}
	return EventRow{
		EventType:      output.EventType.String(),
		IdempotencyKey: output.IdempotencyKey,
		RunID:          runID,
		Block:          output.Order.Block,
		TxIndex:        output.Order.TxIndex,
		LogIndex:       output.Order.LogIndex,
		EventTime:      output.Timestamp,
	}
}

// flushWithRetry attempts to flush with exponential backoff. The worker
// never drops a batch: it retries until the write succeeds or, on
// shutdown, attempts one final flush with a background context. Retried
// flushes are idempotent (ON CONFLICT DO NOTHING, upserting store).
func (w *Worker) flushWithRetry(ctx context.Context, events []EventRow, records []storage.Record) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("events", len(events)).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				if finalErr := w.flush(context.Background(), events, records); finalErr != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", finalErr)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			if w.metrics != nil {
				w.metrics.PersistRetry.Inc()
			}
		}

		err := w.flush(ctx, events, records)
		if err == nil {
			if attempt > 0 {
				w.log.Info().Int("retries", attempt).Msg("persistence flush succeeded")
			}
			return nil
		}
	}
}

func (w *Worker) flush(ctx context.Context, events []EventRow, records []storage.Record) error {
	start := time.Now()

	tx, err := w.writer.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteEventBatch(ctx, tx, events); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_events").Inc()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	// Entity records land after the event rows. Records are upserts keyed
	// by (kind, key), so applying a batch twice converges to the same
	// state even when the Postgres commit succeeded on an earlier attempt.
	if err := w.store.Put(ctx, records); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_records").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(events)))
		w.metrics.PersistEventsWritten.Add(float64(len(events)))
		w.metrics.PersistRecordsWritten.Add(float64(len(records)))
	}

	return nil
}

// Writer returns the underlying event-log writer, used at startup to warm
// the applied-key LRU.
func (w *Worker) Writer() *EventLogWriter {
	return w.writer
}
