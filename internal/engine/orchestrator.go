// Package engine orchestrates the realtime pipeline: every decoded tick
// updates the price history, then each active strategy is evaluated
// independently and surviving BUY/SELL signals are persisted and optionally
// routed to order execution.
package engine

import (
	"context"
	"sync"
	"time"

	"tradesignal/internal/kis/codec"
	"tradesignal/internal/strategy"

	"go.uber.org/zap"
)

// PriceHistoryStore is the rolling per-instrument price/volume history.
type PriceHistoryStore interface {
	Append(code string, price float64, volume int64)
	RecentPrices(code string, n int) []float64
	RecentVolumes(code string, n int) []int64
}

// StrategyRepository supplies the currently active strategy definitions.
type StrategyRepository interface {
	ActiveStrategies(ctx context.Context) ([]strategy.Definition, error)
}

// SignalSink persists emitted signals. HOLD never reaches it.
type SignalSink interface {
	Persist(ctx context.Context, sig strategy.TradingSignal) (int64, error)
	MarkExecuted(ctx context.Context, signalID int64) error
}

// OrderResult is the executor's answer to a dispatched signal.
type OrderResult struct {
	Success bool
	OrderID string
}

// OrderExecutor routes a signal to the broker. Internals are out of scope
// here; only the call contract matters.
type OrderExecutor interface {
	Execute(ctx context.Context, strategyID, instrumentID int64, sig strategy.TradingSignal) (OrderResult, error)
}

// Instrument is the resolved identity behind a vendor instrument code.
type Instrument struct {
	ID   int64
	Code string
	Name string
}

// InstrumentRegistry resolves vendor codes to known instruments. Ticks for
// unknown codes are dropped.
type InstrumentRegistry struct {
	byCode map[string]Instrument
}

func NewInstrumentRegistry(list []Instrument) *InstrumentRegistry {
	byCode := make(map[string]Instrument, len(list))
	for _, inst := range list {
		byCode[inst.Code] = inst
	}
	return &InstrumentRegistry{byCode: byCode}
}

func (r *InstrumentRegistry) Resolve(code string) (Instrument, bool) {
	inst, ok := r.byCode[code]
	return inst, ok
}

// Orchestrator consumes the tick stream and drives strategy evaluation.
type Orchestrator struct {
	store       PriceHistoryStore
	instruments *InstrumentRegistry
	strategies  StrategyRepository
	sink        SignalSink
	executor    OrderExecutor
	logger      *zap.Logger
	workers     int
	window      int
}

func NewOrchestrator(
	store PriceHistoryStore,
	instruments *InstrumentRegistry,
	strategies StrategyRepository,
	sink SignalSink,
	executor OrderExecutor,
	workers, window int,
	logger *zap.Logger,
) *Orchestrator {
	if workers <= 0 {
		workers = 5
	}
	if window <= 0 {
		window = 200
	}
	return &Orchestrator{
		store:       store,
		instruments: instruments,
		strategies:  strategies,
		sink:        sink,
		executor:    executor,
		logger:      logger,
		workers:     workers,
		window:      window,
	}
}

// Run consumes ticks until the context is canceled or the channel closes.
func (o *Orchestrator) Run(ctx context.Context, ticks <-chan codec.TickEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			o.OnTick(ctx, tick)
		}
	}
}

// OnTick processes one tick: the history update happens before any indicator
// computation so every evaluation sees the latest point. Strategies run
// concurrently through a bounded worker pool; a failure in one never blocks
// its siblings. OnTick returns after all evaluations finish, preserving
// per-instrument ordering across ticks.
func (o *Orchestrator) OnTick(ctx context.Context, tick codec.TickEvent) {
	o.store.Append(tick.InstrumentCode, tick.Price, tick.Volume)

	inst, ok := o.instruments.Resolve(tick.InstrumentCode)
	if !ok {
		o.logger.Debug("tick for unknown instrument, dropping",
			zap.String("code", tick.InstrumentCode))
		return
	}

	defs, err := o.strategies.ActiveStrategies(ctx)
	if err != nil {
		o.logger.Error("failed to load active strategies", zap.Error(err))
		return
	}

	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup
	for _, def := range defs {
		if def.InstrumentCode != "" && def.InstrumentCode != tick.InstrumentCode {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(def strategy.Definition) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("strategy evaluation panicked",
						zap.Int64("strategy_id", def.ID), zap.Any("panic", r))
				}
			}()
			o.evaluateStrategy(ctx, inst, def, tick)
		}(def)
	}
	wg.Wait()
}

func (o *Orchestrator) evaluateStrategy(ctx context.Context, inst Instrument, def strategy.Definition, tick codec.TickEvent) {
	prices := o.store.RecentPrices(tick.InstrumentCode, o.window)
	volumes := o.store.RecentVolumes(tick.InstrumentCode, o.window)

	// The point before the one just appended is the change-percent reference.
	var prevPrice float64
	if len(prices) >= 2 {
		prevPrice = prices[len(prices)-2]
	}
	var prevVolume int64
	if len(volumes) >= 2 {
		prevVolume = volumes[len(volumes)-2]
	}

	set := def.Condition.ComputeIndicators(prices, volumes)
	decision := strategy.Evaluate(def.Condition, tick.Price, prevPrice, tick.Volume, prevVolume, set, tick.Timestamp)
	if decision.Type == strategy.SignalHold {
		return
	}

	sig := strategy.TradingSignal{
		StrategyID:     def.ID,
		InstrumentID:   inst.ID,
		InstrumentCode: inst.Code,
		Type:           decision.Type,
		Confidence:     decision.Confidence,
		Price:          tick.Price,
		Volume:         tick.Volume,
		Indicators:     set,
		CreatedAt:      time.Now(),
	}

	signalID, err := o.sink.Persist(ctx, sig)
	if err != nil {
		o.logger.Error("failed to persist signal",
			zap.Int64("strategy_id", def.ID), zap.Error(err))
		return
	}
	o.logger.Info("signal emitted",
		zap.Int64("strategy_id", def.ID),
		zap.String("code", inst.Code),
		zap.String("type", string(sig.Type)),
		zap.Float64("confidence", sig.Confidence))

	if !def.AutoTrade {
		return
	}

	result, err := o.executor.Execute(ctx, def.ID, inst.ID, sig)
	if err != nil {
		o.logger.Error("order execution failed",
			zap.Int64("strategy_id", def.ID), zap.Error(err))
		return
	}
	if !result.Success {
		o.logger.Warn("order rejected",
			zap.Int64("strategy_id", def.ID), zap.String("order_id", result.OrderID))
		return
	}

	if err := o.sink.MarkExecuted(ctx, signalID); err != nil {
		o.logger.Warn("failed to mark signal executed",
			zap.Int64("signal_id", signalID), zap.Error(err))
	}
	o.logger.Info("order placed",
		zap.Int64("strategy_id", def.ID), zap.String("order_id", result.OrderID))
}
