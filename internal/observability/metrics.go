package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for OutcomeLedger.
type Metrics struct {
	// --- Engine ---
	EngineEventsApplied  *prometheus.CounterVec
	EngineEventsSkipped  *prometheus.CounterVec
	EngineEventDuration  *prometheus.HistogramVec
	EngineOrderRegressed prometheus.Counter
	EngineLastBlock      prometheus.Gauge

	// --- Ledger & state ---
	PositionsTracked   prometheus.Gauge
	ConditionsPrepared prometheus.Counter
	ConditionsResolved prometheus.Counter
	DegenerateResolutions prometheus.Counter
	NegativePositions  prometheus.Counter
	ActorFiltered      *prometheus.CounterVec
	OpenInterest       prometheus.Gauge

	// --- Ingestion ---
	IngestMessages    *prometheus.CounterVec
	IngestParseErrors *prometheus.CounterVec
	IngestToApply     *prometheus.HistogramVec

	// --- Idempotency ---
	ReplaysSkipped     *prometheus.CounterVec
	AppliedLRUSize     prometheus.Gauge
	AppliedTier2Errors prometheus.Counter

	// --- Channel & Backpressure ---
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	ChannelUtilization *prometheus.GaugeVec
	PersistBackpressure prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistRecordsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetry         prometheus.Counter

	// --- Restore ---
	RestoreEntities prometheus.Gauge
	RestoreDuration prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	ingestBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Engine
		EngineEventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "outcome_engine_events_applied_total",
			Help: "Events successfully applied by the engine",
		}, []string{"event_type"}),

		EngineEventsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "outcome_engine_events_skipped_total",
			Help: "Events skipped (replay, actor filtered, degenerate)",
		}, []string{"event_type", "reason"}),

		EngineEventDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outcome_engine_event_apply_duration_seconds",
			Help:    "Time to apply a single event",
			Buckets: latencyBuckets,
		}, []string{"event_type"}),

		EngineOrderRegressed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outcome_engine_order_regressed_total",
			Help: "Events whose (block, tx, log) position regressed",
		}),

		EngineLastBlock: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "outcome_engine_last_block",
			Help: "Block number of the last event seen",
		}),

		// Ledger & state
		PositionsTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "outcome_positions_tracked",
			Help: "Distinct (account, market, outcome) positions",
		}),

		ConditionsPrepared: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outcome_conditions_prepared_total",
			Help: "Conditions prepared",
		}),

		ConditionsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outcome_conditions_resolved_total",
			Help: "Conditions resolved",
		}),

		DegenerateResolutions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outcome_degenerate_resolutions_total",
			Help: "Resolutions rejected for an all-zero payout vector",
		}),

		NegativePositions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outcome_negative_positions_total",
			Help: "Commits that left a negative net quantity",
		}),

		ActorFiltered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "outcome_actor_filtered_total",
			Help: "Events whose ledger effects were skipped by actor class",
		}, []string{"event_type", "actor_class"}),

		OpenInterest: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "outcome_open_interest",
			Help: "Collateral-denominated open interest heuristic",
		}),

		// Ingestion
		IngestMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "outcome_ingest_messages_total",
			Help: "NATS messages received",
		}, []string{"subject"}),

		IngestParseErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "outcome_ingest_parse_errors_total",
			Help: "Messages dropped for parse failures",
		}, []string{"subject"}),

		IngestToApply: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outcome_ingest_to_apply_seconds",
			Help:    "NATS receive to engine apply complete",
			Buckets: ingestBuckets,
		}, []string{"event_type"}),

		// Idempotency
		ReplaysSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "outcome_replays_skipped_total",
			Help: "Replayed events skipped (lru/store)",
		}, []string{"event_type", "tier"}),

		AppliedLRUSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "outcome_applied_lru_size",
			Help: "Current applied-key LRU occupancy",
		}),

		AppliedTier2Errors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outcome_applied_tier2_errors_total",
			Help: "Durable applied-key lookup failures",
		}),

		// Channel & Backpressure
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "outcome_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "outcome_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "outcome_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outcome_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		// Persistence
		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outcome_persist_events_written_total",
			Help: "Event rows written to Postgres",
		}),

		PersistRecordsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outcome_persist_records_written_total",
			Help: "Entity records written to the entity store",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "outcome_persist_batch_size",
			Help:    "Events per flush batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "outcome_persist_batch_duration_seconds",
			Help:    "Flush batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "outcome_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outcome_persist_retry_total",
			Help: "Persistence retries",
		}),

		// Restore
		RestoreEntities: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "outcome_restore_entities",
			Help: "Entities loaded from the entity store on startup",
		}),

		RestoreDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "outcome_restore_duration_seconds",
			Help: "Total warm-restore time",
		}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
