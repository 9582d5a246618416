package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Maiki02/trading-bot-sub000/internal/domain/models"
	"github.com/Maiki02/trading-bot-sub000/internal/domain/repository"
	"github.com/Maiki02/trading-bot-sub000/pkg/logger"
)

// EngineConfig is the caller-supplied tuning for the ingestion engine.
type EngineConfig struct {
	Instruments       []repository.Instrument
	BufferCapacity    int
	TickQueueCapacity int
	CorrelationWindow time.Duration
	ShutdownTimeout   time.Duration
}

// Engine owns the per-instrument states and runs the full pipeline:
// provider events in, resolved signal outcomes out. It depends only on
// the injected collaborator contracts, never on concrete implementations.
type Engine struct {
	cfg      EngineConfig
	stream   repository.MarketStream
	detector repository.PatternDetector
	notifier repository.Notifier
	store    repository.SignalStore
	cache    repository.SnapshotCache
	metrics  repository.Metrics
	log      *logger.Logger

	instruments map[string]*InstrumentState
	correlator  *DualSourceCorrelator
	lifecycle   *SignalLifecycleManager

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	fatalCh chan error
}

// NewEngine creates the engine. cache may be nil when snapshotting is
// disabled.
func NewEngine(
	cfg EngineConfig,
	stream repository.MarketStream,
	detector repository.PatternDetector,
	notifier repository.Notifier,
	store repository.SignalStore,
	cache repository.SnapshotCache,
	metrics repository.Metrics,
	log *logger.Logger,
) *Engine {
	e := &Engine{
		cfg:         cfg,
		stream:      stream,
		detector:    detector,
		notifier:    notifier,
		store:       store,
		cache:       cache,
		metrics:     metrics,
		log:         log.Named("engine"),
		instruments: make(map[string]*InstrumentState),
		lifecycle:   NewSignalLifecycleManager(log),
		fatalCh:     make(chan error, 1),
	}
	e.correlator = NewDualSourceCorrelator(cfg.CorrelationWindow, log, e.onConfirmed, e.onStandalone)
	for _, inst := range cfg.Instruments {
		e.instruments[inst.Symbol] = NewInstrumentState(
			inst.Symbol, inst.Timeframe,
			cfg.BufferCapacity, cfg.TickQueueCapacity,
			log, metrics,
		)
	}
	return e
}

// Fatal delivers the single fatal error that stopped the engine, if any.
func (e *Engine) Fatal() <-chan error { return e.fatalCh }

// Instrument returns the state for a symbol.
func (e *Engine) Instrument(symbol string) (*InstrumentState, bool) {
	s, ok := e.instruments[symbol]
	return s, ok
}

// Snapshot reports per-instrument counters plus pending-signal totals.
func (e *Engine) Snapshot() map[string]InstrumentStats {
	out := make(map[string]InstrumentStats, len(e.instruments))
	for sym, st := range e.instruments {
		out[sym] = st.Stats()
	}
	return out
}

// Ready reports whether the provider connection is up.
func (e *Engine) Ready() bool { return e.stream.IsConnected() }

// Start connects, subscribes every configured instrument and launches the
// per-instrument consumer tasks plus the event dispatcher.
func (e *Engine) Start(ctx context.Context) error {
	if len(e.instruments) == 0 {
		return fmt.Errorf("engine: no instruments configured")
	}

	initCtx, cancelInit := context.WithTimeout(ctx, 10*time.Second)
	defer cancelInit()
	if err := e.store.Init(initCtx); err != nil {
		return fmt.Errorf("signal store init: %w", err)
	}

	if err := e.stream.Connect(ctx); err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	for _, inst := range e.cfg.Instruments {
		if err := e.stream.Subscribe(ctx, inst); err != nil {
			return fmt.Errorf("subscribe %s: %w", inst.Symbol, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	for _, st := range e.instruments {
		st := st
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			st.Run(runCtx, func(c models.Candle) { e.onCandleClosed(runCtx, st, c) })
		}()
	}

	events, fatal := e.stream.Read(runCtx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatch(runCtx, events, fatal)
	}()

	symbols := make([]string, 0, len(e.instruments))
	for sym := range e.instruments {
		symbols = append(symbols, sym)
	}
	e.log.Info("engine started",
		logger.Int("instruments", len(e.instruments)),
		logger.Strings("symbols", symbols))
	return nil
}

// dispatch routes decoded provider events to the owning instrument. It
// must never block: ticks and candles go through the instrument's bounded
// queue and a slow instrument only drops its own events.
func (e *Engine) dispatch(ctx context.Context, events <-chan repository.MarketEvent, fatal <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-fatal:
			if !ok {
				// The stream's run loop exited without a fatal error;
				// keep draining events until that side closes too.
				fatal = nil
				continue
			}
			if err != nil {
				e.handleFatal(ctx, err)
				return
			}
		case ev, ok := <-events:
			if !ok {
				// The stream closes events after its run loop exits. A
				// fatal error sent just before that close may still sit
				// buffered in the fatal channel; it must not be lost.
				e.drainFatal(ctx, fatal)
				return
			}
			switch {
			case ev.Tick != nil:
				if st, found := e.instruments[ev.Tick.Symbol]; found {
					st.EnqueueTick(*ev.Tick)
				}
			case ev.Candle != nil:
				if st, found := e.instruments[ev.Candle.Symbol]; found {
					st.EnqueueNativeCandle(*ev.Candle)
				}
			}
		}
	}
}

// drainFatal receives any fatal error already buffered when the event
// stream shut down.
func (e *Engine) drainFatal(ctx context.Context, fatal <-chan error) {
	if fatal == nil {
		return
	}
	select {
	case err, ok := <-fatal:
		if ok && err != nil {
			e.handleFatal(ctx, err)
		}
	default:
	}
}

// handleFatal surfaces a non-retryable error exactly once and stops the
// ingestion side.
func (e *Engine) handleFatal(ctx context.Context, err error) {
	e.metrics.RecordError("fatal")
	e.log.Error("fatal stream error, engine halting", logger.Error(err))
	if nerr := e.notifier.Fatal(ctx, "market stream halted", err); nerr != nil {
		e.log.Warn("fatal notification failed", logger.Error(nerr))
	}
	select {
	case e.fatalCh <- err:
	default:
	}
}

// onCandleClosed runs on the owning instrument's consumer goroutine and
// implements the two-step closed-candle protocol: resolve the pending
// signal first, then feed the candle to the detector. Resolution is keyed
// to the native series so it stays exactly one provider candle ahead.
func (e *Engine) onCandleClosed(ctx context.Context, st *InstrumentState, c models.Candle) {
	if e.cache != nil {
		if err := e.cache.PutCandle(ctx, c); err != nil {
			e.metrics.RecordError("snapshot_put")
		}
	}

	key := models.NewSourceKey(c.Symbol, time.Duration(st.Timeframe())*time.Second)

	if c.Series == models.SeriesNative {
		interval := time.Duration(st.Timeframe()) * time.Second
		if outcome := e.lifecycle.Resolve(key, c, interval); outcome != nil {
			e.metrics.RecordSignalResolved(string(key), outcome.Success)
			e.log.Info("signal resolved",
				logger.String("key", string(key)),
				logger.String("pattern", outcome.Pattern),
				logger.Bool("success", outcome.Success),
				logger.Float64("pnl", outcome.PnL),
				logger.Bool("skipped_candles", outcome.HasSkippedCandles))
			if err := e.notifier.OutcomeResolved(ctx, *outcome); err != nil {
				e.metrics.RecordError("notify_outcome")
				e.log.Warn("outcome notification failed", logger.Error(err))
			}
			if err := e.store.StoreOutcome(ctx, *outcome); err != nil {
				e.metrics.RecordError("store_outcome")
				e.log.Warn("outcome store failed", logger.Error(err))
			}
		}
	}

	match := e.detector.Detect(key, c)
	if match == nil {
		return
	}
	e.correlator.Submit(models.PatternCandidate{
		Key:        key,
		Source:     c.Series,
		Symbol:     c.Symbol,
		Pattern:    match.Pattern,
		Confidence: match.Confidence,
		Expected:   match.ExpectedDirection,
		Trigger:    c,
		DetectedAt: time.Now().UTC(),
	})
}

// onConfirmed handles a dual-source merge from the correlator.
func (e *Engine) onConfirmed(sig models.ConfirmedSignal, second models.PatternCandidate) {
	armed := e.lifecycle.Arm(models.PendingSignal{
		Key:           second.Key,
		Pattern:       sig.Pattern,
		Expected:      sig.Expected,
		TriggerCandle: second.Trigger,
		CreatedAt:     sig.ConfirmedAt,
	})
	if !armed {
		e.log.Debug("confirmed signal ignored, key already pending",
			logger.String("key", string(second.Key)))
		return
	}
	e.metrics.RecordSignalPending(string(second.Key))
	e.log.Info("signal confirmed by both series",
		logger.String("key", string(second.Key)),
		logger.String("pattern", sig.Pattern))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.notifier.SignalConfirmed(ctx, sig); err != nil {
		e.metrics.RecordError("notify_confirmed")
		e.log.Warn("confirmation notification failed", logger.Error(err))
	}
}

// onStandalone handles a candidate whose correlation window expired.
func (e *Engine) onStandalone(cand models.PatternCandidate) {
	armed := e.lifecycle.Arm(models.PendingSignal{
		Key:           cand.Key,
		Pattern:       cand.Pattern,
		Expected:      cand.Expected,
		TriggerCandle: cand.Trigger,
		CreatedAt:     cand.DetectedAt,
	})
	if !armed {
		e.log.Debug("standalone candidate ignored, key already pending",
			logger.String("key", string(cand.Key)))
		return
	}
	e.metrics.RecordSignalPending(string(cand.Key))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	match := models.PatternMatch{
		Pattern:           cand.Pattern,
		Confidence:        cand.Confidence,
		ExpectedDirection: cand.Expected,
	}
	if err := e.notifier.PatternDetected(ctx, cand.Key, match, cand.Trigger); err != nil {
		e.metrics.RecordError("notify_pattern")
		e.log.Warn("pattern notification failed", logger.Error(err))
	}
}

// Stop cancels every task cooperatively, performs the transport's
// graceful close and waits for the workers within the shutdown timeout.
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.correlator.Close()

	timeout := e.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := e.stream.Close(closeCtx); err != nil {
		e.log.Warn("stream close error", logger.Error(err))
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-closeCtx.Done():
		e.log.Warn("shutdown timeout, workers abandoned")
	}

	for sym, stats := range e.Snapshot() {
		e.log.Info("instrument final counters",
			logger.String("symbol", sym),
			logger.Int64("ticks", stats.Ticks),
			logger.Int64("dropped", stats.TicksDropped),
			logger.Int64("candles_closed", stats.CandlesClosed))
	}
	return nil
}
