package usecase

import (
	"context"
	"sync"

	"github.com/Maiki02/trading-bot-sub000/internal/domain/models"
	"github.com/Maiki02/trading-bot-sub000/internal/domain/repository"
	"github.com/Maiki02/trading-bot-sub000/pkg/logger"
)

// instrumentEvent is one entry of the per-instrument queue: a tick or a
// provider-reported candle, processed strictly in arrival order.
type instrumentEvent struct {
	tick   *models.Tick
	candle *models.Candle
}

// InstrumentStats is a point-in-time view of one instrument's counters.
type InstrumentStats struct {
	Symbol        string
	Ticks         int64
	TicksDropped  int64
	CandlesClosed int64
	NativeLen     int
	SyntheticLen  int
}

// InstrumentState owns everything for one monitored instrument: the
// bounded dual candle buffers, the in-progress builder and the bounded
// event queue drained by a single consumer goroutine. All mutation happens
// under its own lock; a stalled instrument never blocks another.
type InstrumentState struct {
	symbol    string
	timeframe int // seconds

	mu        sync.Mutex
	native    *models.CandleBuffer
	synthetic *models.CandleBuffer
	builder   *models.CandleBuilder

	queue chan instrumentEvent

	ticks   int64
	drops   int64
	closed  int64
	log     *logger.Logger
	metrics repository.Metrics
}

// NewInstrumentState creates the state for one subscribed instrument.
func NewInstrumentState(symbol string, timeframe, bufferCap, queueCap int, log *logger.Logger, metrics repository.Metrics) *InstrumentState {
	if queueCap <= 0 {
		queueCap = 256
	}
	return &InstrumentState{
		symbol:    symbol,
		timeframe: timeframe,
		native:    models.NewCandleBuffer(bufferCap),
		synthetic: models.NewCandleBuffer(bufferCap),
		queue:     make(chan instrumentEvent, queueCap),
		log:       log.Named("instrument").Named(symbol),
		metrics:   metrics,
	}
}

// Symbol returns the instrument symbol.
func (s *InstrumentState) Symbol() string { return s.symbol }

// Timeframe returns the expected candle interval in seconds.
func (s *InstrumentState) Timeframe() int { return s.timeframe }

// EnqueueTick queues a tick for the consumer without ever blocking the
// ingestion path. When the queue is full the newest tick is dropped.
func (s *InstrumentState) EnqueueTick(t models.Tick) {
	select {
	case s.queue <- instrumentEvent{tick: &t}:
	default:
		s.mu.Lock()
		s.drops++
		s.mu.Unlock()
		s.metrics.RecordTickDropped(s.symbol)
		s.log.Warn("tick queue saturated, tick dropped")
	}
}

// EnqueueNativeCandle queues a provider candle behind any ticks already
// in flight, preserving per-instrument arrival order.
func (s *InstrumentState) EnqueueNativeCandle(c models.Candle) {
	select {
	case s.queue <- instrumentEvent{candle: &c}:
	default:
		s.metrics.RecordError("candle_queue_full")
		s.log.Warn("queue saturated, native candle dropped")
	}
}

// Run drains the queue until ctx is cancelled, invoking onClosed for
// every candle sealed on either series. Exactly one Run per instrument.
func (s *InstrumentState) Run(ctx context.Context, onClosed func(models.Candle)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.queue:
			switch {
			case ev.tick != nil:
				s.processTick(*ev.tick, onClosed)
			case ev.candle != nil:
				s.addNativeCandle(*ev.candle, onClosed)
			}
		}
	}
}

// processTick updates the active builder, sealing it when the tick opens
// a later minute bucket.
func (s *InstrumentState) processTick(t models.Tick, onClosed func(models.Candle)) {
	s.metrics.RecordTick(s.symbol)

	var sealed *models.Candle
	s.mu.Lock()
	s.ticks++
	switch {
	case s.builder == nil:
		s.builder = models.NewCandleBuilder(t)
	case models.BucketOf(t).After(s.builder.Bucket):
		c := s.builder.Seal()
		s.synthetic.Append(c)
		s.closed++
		sealed = &c
		s.builder = models.NewCandleBuilder(t)
	default:
		// Same or earlier bucket: widen extremes, close tracks the
		// latest tick received.
		s.builder.Apply(t)
	}
	s.mu.Unlock()

	if sealed != nil {
		s.metrics.RecordCandleClosed(s.symbol, string(models.SeriesSynthetic))
		onClosed(*sealed)
	}
}

// addNativeCandle appends a provider-reported candle directly to the
// native buffer; it never passes through the synthesizer.
func (s *InstrumentState) addNativeCandle(c models.Candle, onClosed func(models.Candle)) {
	if err := c.Validate(); err != nil {
		s.metrics.RecordError("invalid_candle")
		s.log.Warn("native candle discarded", logger.Error(err))
		return
	}
	s.mu.Lock()
	s.native.Append(c)
	s.closed++
	s.mu.Unlock()

	s.metrics.RecordCandleClosed(s.symbol, string(models.SeriesNative))
	onClosed(c)
}

// LastCandle returns the newest closed candle of the given series.
func (s *InstrumentState) LastCandle(series models.SeriesKind) (models.Candle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if series == models.SeriesNative {
		return s.native.Last()
	}
	return s.synthetic.Last()
}

// Stats returns a snapshot of the instrument counters.
func (s *InstrumentState) Stats() InstrumentStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return InstrumentStats{
		Symbol:        s.symbol,
		Ticks:         s.ticks,
		TicksDropped:  s.drops,
		CandlesClosed: s.closed,
		NativeLen:     s.native.Len(),
		SyntheticLen:  s.synthetic.Len(),
	}
}
