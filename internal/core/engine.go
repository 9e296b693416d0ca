package core

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"OutcomeLedger/internal/event"
	"OutcomeLedger/internal/ledger"
	fpmath "OutcomeLedger/internal/math"
	"OutcomeLedger/internal/observability"
	"OutcomeLedger/internal/state"
	"OutcomeLedger/internal/storage"
)

// Engine is the single-threaded event processor. All registries and the
// position ledger are owned by it; nothing else mutates them while the
// engine runs.
type Engine struct {
	runID uuid.UUID

	conditions   *state.ConditionRegistry
	makers       *state.MarketMakerRegistry
	transactions *state.TransactionStore
	accounts     *state.AccountTracker
	stats        *state.StatsTracker
	ledger       *ledger.Ledger

	applied *AppliedChecker
	order   *OrderValidator

	// Wrapper contracts hold tokens on behalf of users; their own splits,
	// merges and redemptions are custody churn, not user economics.
	wrappers map[common.Address]bool

	persistChan chan<- Output
	metrics     *observability.Metrics
	log         zerolog.Logger
}

// Output is what the engine emits per applied event: the audit identity
// of the event plus the entity records its application dirtied.
type Output struct {
	RunID          uuid.UUID
	EventType      event.EventType
	IdempotencyKey string
	Order          event.OrderKey
	Timestamp      time.Time
	Records        []storage.Record
}

// Config carries the engine's construction parameters.
type Config struct {
	RiskTransferOracle common.Address
	WrapperContracts   []common.Address
	CollateralDecimals int32
	AppliedLRUCapacity int
}

func NewEngine(
	cfg Config,
	dbChecker DBAppliedChecker,
	persistChan chan<- Output,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Engine {
	wrappers := make(map[common.Address]bool, len(cfg.WrapperContracts))
	for _, w := range cfg.WrapperContracts {
		wrappers[w] = true
	}

	capacity := cfg.AppliedLRUCapacity
	if capacity <= 0 {
		capacity = 1_000_000
	}

	applied := NewAppliedChecker(capacity, dbChecker)
	applied.metrics = metrics

	return &Engine{
		runID:        uuid.New(),
		conditions:   state.NewConditionRegistry(cfg.RiskTransferOracle, log),
		makers:       state.NewMarketMakerRegistry(),
		transactions: state.NewTransactionStore(),
		accounts:     state.NewAccountTracker(),
		stats:        state.NewStatsTracker(cfg.CollateralDecimals),
		ledger:       ledger.NewLedger(log),
		applied:      applied,
		order:        NewOrderValidator(log),
		wrappers:     wrappers,
		persistChan:  persistChan,
		metrics:      metrics,
		log:          log,
	}
}

func (e *Engine) RunID() uuid.UUID                        { return e.runID }
func (e *Engine) Conditions() *state.ConditionRegistry    { return e.conditions }
func (e *Engine) MarketMakers() *state.MarketMakerRegistry { return e.makers }
func (e *Engine) Transactions() *state.TransactionStore   { return e.transactions }
func (e *Engine) Accounts() *state.AccountTracker         { return e.accounts }
func (e *Engine) Stats() *state.StatsTracker              { return e.stats }
func (e *Engine) Ledger() *ledger.Ledger                  { return e.ledger }
func (e *Engine) Applied() *AppliedChecker                { return e.applied }

// LastOrder returns the highest order key the engine has observed.
func (e *Engine) LastOrder() (event.OrderKey, bool) { return e.order.Last() }

// OrderRegressions returns the count of out-of-order events seen.
func (e *Engine) OrderRegressions() int64 { return e.order.Regressions() }

// WarmApplied preloads recently applied keys into the LRU tier.
func (e *Engine) WarmApplied(compositeKeys []string) {
	e.applied.Warm(compositeKeys)
}

// ProcessEvent is the main processing pipeline.
func (e *Engine) ProcessEvent(evt event.Event) error {
	start := time.Now()
	eventType := evt.EventType()
	idempotencyKey := evt.IdempotencyKey()

	// Step 1: applied check (two-tier). Every mutation is gated here, so
	// overlapping feed replays fold into no-ops.
	if e.applied.WasApplied(eventType, idempotencyKey) {
		if e.metrics != nil {
			e.metrics.EngineEventsSkipped.WithLabelValues(eventType.String(), "replay").Inc()
		}
		return nil
	}

	// Step 2: order observation. Regressions are counted, never rejected.
	orderKey := evt.Order()
	if e.order.Observe(orderKey) && e.metrics != nil {
		e.metrics.EngineOrderRegressed.Inc()
	}

	// Step 3: dispatch
	records, err := e.dispatchEvent(evt)
	if err != nil {
		return fmt.Errorf("dispatch %s %s: %w", eventType, idempotencyKey, err)
	}

	// Step 4: emit. Blocking send; the engine stalls until the persistence
	// worker drains, so no applied event is ever lost.
	if e.metrics != nil && len(e.persistChan) == cap(e.persistChan) {
		e.metrics.PersistBackpressure.Inc()
	}
	e.persistChan <- Output{
		RunID:          e.runID,
		EventType:      eventType,
		IdempotencyKey: idempotencyKey,
		Order:          orderKey,
		Timestamp:      eventTimestamp(evt),
		Records:        records,
	}

	// Step 5: mark applied (LRU tier; the durable tier is written by the
	// persistence worker as part of the event row).
	e.applied.MarkApplied(eventType, idempotencyKey)

	if e.metrics != nil {
		e.metrics.EngineEventsApplied.WithLabelValues(eventType.String()).Inc()
		e.metrics.EngineEventDuration.WithLabelValues(eventType.String()).Observe(time.Since(start).Seconds())
		e.metrics.EngineLastBlock.Set(float64(orderKey.Block))
		e.metrics.PositionsTracked.Set(float64(e.ledger.Tracker().Len()))
		oi, _ := new(big.Float).SetInt(e.stats.Stats().OpenInterest).Float64()
		e.metrics.OpenInterest.Set(oi)
		e.metrics.SetChannelMetrics("persist", len(e.persistChan), cap(e.persistChan))
	}

	return nil
}

func (e *Engine) dispatchEvent(evt event.Event) ([]storage.Record, error) {
	switch ev := evt.(type) {
	case *event.ConditionPrepared:
		return e.handleConditionPrepared(ev)
	case *event.ConditionResolution:
		return e.handleConditionResolution(ev)
	case *event.PositionSplit:
		return e.handlePositionSplit(ev)
	case *event.PositionsMerge:
		return e.handlePositionsMerge(ev)
	case *event.PayoutRedemption:
		return e.handlePayoutRedemption(ev)
	case *event.PositionsConverted:
		return e.handlePositionsConverted(ev)
	case *event.Trade:
		return e.handleTrade(ev)
	case *event.LiquidityAdded:
		return e.handleLiquidityAdded(ev)
	case *event.LiquidityRemoved:
		return e.handleLiquidityRemoved(ev)
	case *event.MarketMakerRegistered:
		return e.handleMarketMakerRegistered(ev)
	default:
		return nil, fmt.Errorf("unhandled event type %T", evt)
	}
}

// eventTimestamp extracts the versioned timestamp carried by the event.
// The engine never calls time.Now() for state; wall-clock time only feeds
// metrics.
func eventTimestamp(evt event.Event) time.Time {
	switch ev := evt.(type) {
	case *event.ConditionPrepared:
		return ev.Timestamp
	case *event.ConditionResolution:
		return ev.Timestamp
	case *event.PositionSplit:
		return ev.Timestamp
	case *event.PositionsMerge:
		return ev.Timestamp
	case *event.PayoutRedemption:
		return ev.Timestamp
	case *event.PositionsConverted:
		return ev.Timestamp
	case *event.Trade:
		return ev.Timestamp
	case *event.LiquidityAdded:
		return ev.Timestamp
	case *event.LiquidityRemoved:
		return ev.Timestamp
	case *event.MarketMakerRegistered:
		return ev.Timestamp
	default:
		return time.Time{}
	}
}

// actorClass classifies an actor for ledger filtering. Market makers and
// wrapper contracts never accrue ledger positions of their own.
func (e *Engine) actorClass(actor common.Address) (string, bool) {
	if e.makers.IsMarketMaker(actor) {
		return "market_maker", true
	}
	if e.wrappers[actor] {
		return "wrapper", true
	}
	return "", false
}

func (e *Engine) skipActor(eventType event.EventType, actor common.Address, class string) {
	if e.metrics != nil {
		e.metrics.ActorFiltered.WithLabelValues(eventType.String(), class).Inc()
	}
	e.log.Debug().
		Str("event_type", eventType.String()).
		Str("actor", actor.Hex()).
		Str("class", class).
		Msg("ledger effects skipped by actor class")
}

// --- Handlers ---

func (e *Engine) handleConditionPrepared(evt *event.ConditionPrepared) ([]storage.Record, error) {
	_, existed := e.conditions.Lookup(evt.ConditionID)

	cond, aux := e.conditions.Prepare(evt.ConditionID, evt.Oracle, evt.QuestionID, evt.OutcomeSlotCount)

	records := make([]storage.Record, 0, 2+len(aux))
	records = append(records, storage.EncodeCondition(cond))
	for _, a := range aux {
		records = append(records, storage.EncodeNegRisk(a))
	}

	if !existed {
		e.stats.ConditionPrepared()
		records = append(records, storage.EncodeStats(e.stats.Stats()))
		if e.metrics != nil {
			e.metrics.ConditionsPrepared.Inc()
		}
		e.log.Info().
			Str("condition", cond.ID.Hex()).
			Str("oracle", cond.Oracle.Hex()).
			Int("outcome_slots", cond.OutcomeSlotCount).
			Int("neg_risk_positions", len(aux)).
			Msg("condition prepared")
	}

	return records, nil
}

func (e *Engine) handleConditionResolution(evt *event.ConditionResolution) ([]storage.Record, error) {
	cond, transitioned, err := e.conditions.Resolve(evt.ConditionID, evt.PayoutNumerators, evt.Timestamp, evt.TxHash)
	if err != nil {
		// Degenerate vectors and unknown conditions are rejected without
		// poisoning the event loop: the event is still marked applied so
		// the same log is never retried, and the condition stays Open.
		if e.metrics != nil {
			e.metrics.EngineEventsSkipped.WithLabelValues(evt.EventType().String(), "rejected").Inc()
			if errors.Is(err, state.ErrDegenerateResolution) {
				e.metrics.DegenerateResolutions.Inc()
			}
		}
		e.log.Error().Err(err).
			Str("condition", evt.ConditionID.Hex()).
			Msg("resolution rejected")
		return nil, nil
	}

	records := []storage.Record{storage.EncodeCondition(cond)}
	if transitioned {
		e.stats.ConditionResolved()
		records = append(records, storage.EncodeStats(e.stats.Stats()))
		if e.metrics != nil {
			e.metrics.ConditionsResolved.Inc()
		}
	}

	e.log.Info().
		Str("condition", cond.ID.Hex()).
		Bool("transitioned", transitioned).
		Str("denominator", cond.PayoutDenominator.String()).
		Msg("condition resolved")

	return records, nil
}

func (e *Engine) handlePositionSplit(evt *event.PositionSplit) ([]storage.Record, error) {
	if class, filtered := e.actorClass(evt.Stakeholder); filtered {
		e.skipActor(evt.EventType(), evt.Stakeholder, class)
		return nil, nil
	}

	cond, ok := e.conditions.Lookup(evt.ConditionID)
	if !ok {
		e.log.Warn().
			Str("condition", evt.ConditionID.Hex()).
			Str("tx", evt.TxHash.Hex()).
			Msg("split on unknown condition, skipped")
		return nil, nil
	}

	// Only full partitions read as collateral<->outcome-token conversions.
	// Partial partitions reshape positions without changing exposure in a
	// way this ledger can value, so they are recorded as audit rows only.
	if !ledger.IsFullPartition(evt.Partition, cond.OutcomeSlotCount) {
		e.log.Warn().
			Str("condition", evt.ConditionID.Hex()).
			Str("tx", evt.TxHash.Hex()).
			Int("partition_len", len(evt.Partition)).
			Msg("split with partial partition, ledger effects skipped")
		return nil, nil
	}

	records := e.markSeen(evt.Stakeholder, evt.Timestamp, nil)
	for _, market := range cond.MarketMakers {
		touched := e.ledger.ApplySplit(evt.Stakeholder, market, cond.OutcomeSlotCount, evt.Amount)
		records = e.appendPositions(records, touched)
	}

	e.stats.OpenInterestAdd(evt.Amount)
	records = append(records, storage.EncodeStats(e.stats.Stats()))

	return records, nil
}

func (e *Engine) handlePositionsMerge(evt *event.PositionsMerge) ([]storage.Record, error) {
	if class, filtered := e.actorClass(evt.Stakeholder); filtered {
		e.skipActor(evt.EventType(), evt.Stakeholder, class)
		return nil, nil
	}

	cond, ok := e.conditions.Lookup(evt.ConditionID)
	if !ok {
		e.log.Warn().
			Str("condition", evt.ConditionID.Hex()).
			Str("tx", evt.TxHash.Hex()).
			Msg("merge on unknown condition, skipped")
		return nil, nil
	}

	if !ledger.IsFullPartition(evt.Partition, cond.OutcomeSlotCount) {
		e.log.Warn().
			Str("condition", evt.ConditionID.Hex()).
			Str("tx", evt.TxHash.Hex()).
			Int("partition_len", len(evt.Partition)).
			Msg("merge with partial partition, ledger effects skipped")
		return nil, nil
	}

	records := e.markSeen(evt.Stakeholder, evt.Timestamp, nil)
	for _, market := range cond.MarketMakers {
		touched := e.ledger.ApplyMerge(evt.Stakeholder, market, cond.OutcomeSlotCount, evt.Amount)
		records = e.appendPositions(records, touched)
	}

	e.stats.OpenInterestSub(evt.Amount)
	records = append(records, storage.EncodeStats(e.stats.Stats()))

	return records, nil
}

func (e *Engine) handlePayoutRedemption(evt *event.PayoutRedemption) ([]storage.Record, error) {
	if class, filtered := e.actorClass(evt.Redeemer); filtered {
		e.skipActor(evt.EventType(), evt.Redeemer, class)
		return nil, nil
	}

	cond, ok := e.conditions.Lookup(evt.ConditionID)
	if !ok {
		e.log.Warn().
			Str("condition", evt.ConditionID.Hex()).
			Str("tx", evt.TxHash.Hex()).
			Msg("redemption on unknown condition, skipped")
		return nil, nil
	}
	if !cond.Resolved() {
		e.log.Warn().
			Str("condition", evt.ConditionID.Hex()).
			Str("tx", evt.TxHash.Hex()).
			Msg("redemption before resolution, skipped")
		return nil, nil
	}

	indexes := ledger.OutcomeIndexes(evt.IndexSets)

	records := e.markSeen(evt.Redeemer, evt.Timestamp, nil)
	totalValue := new(big.Int)
	for _, market := range cond.MarketMakers {
		touched, value := e.ledger.ApplyRedemption(
			evt.Redeemer, market, indexes, cond.PayoutNumerators, cond.PayoutDenominator)
		records = e.appendPositions(records, touched)
		totalValue.Add(totalValue, value)
	}

	e.stats.OpenInterestSub(totalValue)
	records = append(records, storage.EncodeStats(e.stats.Stats()))

	e.log.Debug().
		Str("redeemer", evt.Redeemer.Hex()).
		Str("condition", evt.ConditionID.Hex()).
		Str("ledger_value", totalValue.String()).
		Str("reported_payout", evt.Payout.String()).
		Msg("redemption applied")

	return records, nil
}

// handlePositionsConverted keeps conversions as audit rows. The converted
// amount spans several binary markets at once and has no deterministic
// per-outcome decomposition, so no ledger legs are booked.
func (e *Engine) handlePositionsConverted(evt *event.PositionsConverted) ([]storage.Record, error) {
	if class, filtered := e.actorClass(evt.Stakeholder); filtered {
		e.skipActor(evt.EventType(), evt.Stakeholder, class)
		return nil, nil
	}
	records := e.markSeen(evt.Stakeholder, evt.Timestamp, nil)
	records = append(records, storage.EncodeStats(e.stats.Stats()))
	return records, nil
}

func (e *Engine) handleTrade(evt *event.Trade) ([]storage.Record, error) {
	if class, filtered := e.actorClass(evt.Account); filtered {
		e.skipActor(evt.EventType(), evt.Account, class)
		return nil, nil
	}

	e.transactions.Record(&state.Transaction{
		TxHash:           evt.TxHash,
		Type:             evt.Type,
		Account:          evt.Account,
		Market:           evt.Market,
		OutcomeIndex:     evt.OutcomeIndex,
		TokenAmount:      evt.TokenAmount,
		CollateralAmount: evt.CollateralAmount,
		FeeAmount:        evt.FeeAmount,
		Timestamp:        evt.Timestamp,
	})

	tx, ok := e.transactions.Lookup(evt.TxHash)
	if !ok {
		// The context was recorded one line up; losing it means the store
		// is corrupt and no partial accounting is safe.
		return nil, fmt.Errorf("tx %s: %w", evt.TxHash.Hex(), state.ErrTransactionNotFound)
	}

	records := e.markSeen(evt.Account, evt.Timestamp, nil)

	var pos *ledger.MarketPosition
	switch tx.Type {
	case event.TradeTypeBuy:
		pos = e.ledger.ApplyBuy(tx.Account, tx.Market, tx.OutcomeIndex, tx.TokenAmount, tx.CollateralAmount)
		e.stats.OpenInterestAdd(tx.CollateralAmount)
	case event.TradeTypeSell:
		pos = e.ledger.ApplySell(tx.Account, tx.Market, tx.OutcomeIndex, tx.TokenAmount, tx.CollateralAmount)
		e.stats.OpenInterestSub(tx.CollateralAmount)
	}

	e.stats.RecordTrade(tx.Type, tx.CollateralAmount, tx.FeeAmount)

	if !pos.NetNonNegative() && e.metrics != nil {
		e.metrics.NegativePositions.Inc()
	}
	records = append(records,
		storage.EncodePosition(pos),
		storage.EncodeTransaction(tx),
		storage.EncodeStats(e.stats.Stats()),
	)
	return records, nil
}

func (e *Engine) handleLiquidityAdded(evt *event.LiquidityAdded) ([]storage.Record, error) {
	if class, filtered := e.actorClass(evt.Funder); filtered {
		e.skipActor(evt.EventType(), evt.Funder, class)
		return nil, nil
	}

	mm, ok := e.makers.Lookup(evt.Market)
	if !ok {
		e.log.Warn().
			Str("market", evt.Market.Hex()).
			Str("tx", evt.TxHash.Hex()).
			Msg("liquidity added on unregistered market, skipped")
		return nil, nil
	}

	records := e.markSeen(evt.Funder, evt.Timestamp, nil)
	touched := e.ledger.ApplyLiquidityAdded(evt.Funder, evt.Market, evt.AmountsAdded, mm.OutcomePrices)
	records = e.appendPositions(records, touched)

	anchor := fpmath.MaxBig(evt.AmountsAdded)
	e.stats.OpenInterestAdd(anchor)
	records = append(records, storage.EncodeStats(e.stats.Stats()))

	return records, nil
}

func (e *Engine) handleLiquidityRemoved(evt *event.LiquidityRemoved) ([]storage.Record, error) {
	if class, filtered := e.actorClass(evt.Funder); filtered {
		e.skipActor(evt.EventType(), evt.Funder, class)
		return nil, nil
	}

	if _, ok := e.makers.Lookup(evt.Market); !ok {
		e.log.Warn().
			Str("market", evt.Market.Hex()).
			Str("tx", evt.TxHash.Hex()).
			Msg("liquidity removed on unregistered market, skipped")
		return nil, nil
	}

	records := e.markSeen(evt.Funder, evt.Timestamp, nil)
	touched := e.ledger.ApplyLiquidityRemoved(evt.Funder, evt.Market, evt.AmountsRemoved, evt.SharesBurnt)
	records = e.appendPositions(records, touched)
	records = append(records, storage.EncodeStats(e.stats.Stats()))

	return records, nil
}

func (e *Engine) handleMarketMakerRegistered(evt *event.MarketMakerRegistered) ([]storage.Record, error) {
	mm := e.makers.Register(evt.Market, evt.ConditionID, evt.OutcomeCount, evt.OutcomePrices, evt.Timestamp)

	records := []storage.Record{storage.EncodeMarketMaker(mm)}

	if cond, ok := e.conditions.Lookup(evt.ConditionID); ok {
		if cond.AttachMarketMaker(evt.Market) {
			records = append(records, storage.EncodeCondition(cond))
		}
	} else {
		e.log.Warn().
			Str("market", evt.Market.Hex()).
			Str("condition", evt.ConditionID.Hex()).
			Msg("market maker registered for unknown condition")
	}

	e.log.Info().
		Str("market", evt.Market.Hex()).
		Str("condition", evt.ConditionID.Hex()).
		Int("outcomes", evt.OutcomeCount).
		Msg("market maker registered")

	return records, nil
}

// markSeen records an account's first sighting, counting the trader and
// appending the entity record when new. Every event kind consumes the same
// first-sighting gate, so the count must move here and not in any single
// handler.
func (e *Engine) markSeen(account common.Address, ts time.Time, records []storage.Record) []storage.Record {
	if e.accounts.MarkSeen(account, ts) {
		e.stats.TraderSeen()
		records = append(records, storage.EncodeAccount(account, ts))
	}
	return records
}

func (e *Engine) appendPositions(records []storage.Record, touched []*ledger.MarketPosition) []storage.Record {
	for _, pos := range touched {
		if !pos.NetNonNegative() && e.metrics != nil {
			e.metrics.NegativePositions.Inc()
		}
		records = append(records, storage.EncodePosition(pos))
	}
	return records
}
