package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maiki02/trading-bot-sub000/internal/domain/models"
	"github.com/Maiki02/trading-bot-sub000/internal/domain/repository"
	"github.com/Maiki02/trading-bot-sub000/internal/service/pattern"
	"github.com/Maiki02/trading-bot-sub000/pkg/logger"
	"github.com/Maiki02/trading-bot-sub000/pkg/metrics"
)

type fakeStream struct {
	events chan repository.MarketEvent
	fatal  chan error
	subs   []repository.Instrument
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events: make(chan repository.MarketEvent, 64),
		fatal:  make(chan error, 1),
	}
}

func (f *fakeStream) Connect(context.Context) error { return nil }
func (f *fakeStream) Subscribe(_ context.Context, inst repository.Instrument) error {
	f.subs = append(f.subs, inst)
	return nil
}
func (f *fakeStream) Unsubscribe(context.Context, repository.Instrument) error { return nil }
func (f *fakeStream) Read(context.Context) (<-chan repository.MarketEvent, <-chan error) {
	return f.events, f.fatal
}
func (f *fakeStream) Close(context.Context) error { return nil }
func (f *fakeStream) IsConnected() bool           { return true }

type recordingNotifier struct {
	mu        sync.Mutex
	patterns  []models.SourceKey
	confirmed []models.ConfirmedSignal
	outcomes  []models.SignalOutcome
	fatals    []string
}

func (n *recordingNotifier) PatternDetected(_ context.Context, key models.SourceKey, _ models.PatternMatch, _ models.Candle) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.patterns = append(n.patterns, key)
	return nil
}

func (n *recordingNotifier) SignalConfirmed(_ context.Context, sig models.ConfirmedSignal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, sig)
	return nil
}

func (n *recordingNotifier) OutcomeResolved(_ context.Context, o models.SignalOutcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, o)
	return nil
}

func (n *recordingNotifier) Fatal(_ context.Context, msg string, _ error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fatals = append(n.fatals, msg)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) outcomeCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.outcomes)
}

type memorySignalStore struct {
	mu       sync.Mutex
	outcomes []models.SignalOutcome
}

func (s *memorySignalStore) Init(context.Context) error { return nil }
func (s *memorySignalStore) StoreOutcome(_ context.Context, o models.SignalOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
	return nil
}
func (s *memorySignalStore) Health(context.Context) error { return nil }
func (s *memorySignalStore) Close() error                 { return nil }

func fullBodyCandle(ts time.Time, up bool) models.Candle {
	c := models.Candle{
		Symbol: "EURUSD", Series: models.SeriesNative, Timestamp: ts,
	}
	if up {
		c.Open, c.Close, c.High, c.Low = 1.00, 1.10, 1.105, 0.999
	} else {
		c.Open, c.Close, c.High, c.Low = 1.10, 1.00, 1.101, 0.995
	}
	return c
}

func newTestEngine(stream repository.MarketStream, notifier repository.Notifier, store repository.SignalStore) *Engine {
	return NewEngine(EngineConfig{
		Instruments:       []repository.Instrument{{Symbol: "EURUSD", Exchange: "live", Timeframe: 60}},
		BufferCapacity:    50,
		TickQueueCapacity: 64,
		CorrelationWindow: 100 * time.Millisecond,
		ShutdownTimeout:   time.Second,
	}, stream, pattern.NewBodyMomentum(0.8), notifier, store, nil, metrics.Noop{}, logger.Nop())
}

func TestEngineDetectThenResolveOneCandleAhead(t *testing.T) {
	stream := newFakeStream()
	notifier := &recordingNotifier{}
	store := &memorySignalStore{}
	engine := newTestEngine(stream, notifier, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, engine.Start(ctx))
	defer func() { _ = engine.Stop() }()

	base := time.Date(2025, 3, 10, 10, 15, 0, 0, time.UTC)
	trigger := fullBodyCandle(base, true)
	stream.events <- repository.MarketEvent{Candle: &trigger}

	// Standalone release after the correlation window arms the pending
	// signal and notifies the detection.
	assert.Eventually(t, func() bool {
		return engine.lifecycle.HasPending("EURUSD_60")
	}, 2*time.Second, 10*time.Millisecond)

	outcome := models.Candle{
		Symbol: "EURUSD", Series: models.SeriesNative, Timestamp: base.Add(time.Minute),
		Open: 1.10, High: 1.205, Low: 1.099, Close: 1.20,
	}
	stream.events <- repository.MarketEvent{Candle: &outcome}

	assert.Eventually(t, func() bool { return notifier.outcomeCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	notifier.mu.Lock()
	res := notifier.outcomes[0]
	notifier.mu.Unlock()
	assert.Equal(t, models.SourceKey("EURUSD_60"), res.Key)
	assert.True(t, res.Success)
	assert.False(t, res.HasSkippedCandles)
	assert.InDelta(t, 0.10, res.PnL, 1e-9)

	store.mu.Lock()
	assert.Len(t, store.outcomes, 1)
	store.mu.Unlock()
}

func TestEngineConfirmsWhenBothSeriesAgree(t *testing.T) {
	stream := newFakeStream()
	notifier := &recordingNotifier{}
	store := &memorySignalStore{}
	engine := newTestEngine(stream, notifier, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, engine.Start(ctx))
	defer func() { _ = engine.Stop() }()

	base := time.Date(2025, 3, 10, 10, 15, 0, 0, time.UTC)
	native := fullBodyCandle(base, true)
	stream.events <- repository.MarketEvent{Candle: &native}

	// Ticks forming a green full-body synthetic candle in the same bucket,
	// sealed by the first tick of the next minute.
	for _, tk := range []models.Tick{
		{Symbol: "EURUSD", Timestamp: base.Add(time.Second), Bid: 0.999, Ask: 1.001},
		{Symbol: "EURUSD", Timestamp: base.Add(30 * time.Second), Bid: 1.099, Ask: 1.101},
		{Symbol: "EURUSD", Timestamp: base.Add(65 * time.Second), Bid: 1.099, Ask: 1.101},
	} {
		tk := tk
		stream.events <- repository.MarketEvent{Tick: &tk}
	}

	assert.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.confirmed) == 1
	}, 2*time.Second, 10*time.Millisecond)

	notifier.mu.Lock()
	sig := notifier.confirmed[0]
	notifier.mu.Unlock()
	assert.ElementsMatch(t,
		[]models.SeriesKind{models.SeriesNative, models.SeriesSynthetic},
		sig.Sources)
	assert.True(t, engine.lifecycle.HasPending("EURUSD_60"))
}

func TestEngineFatalStreamErrorSurfacesOnce(t *testing.T) {
	stream := newFakeStream()
	notifier := &recordingNotifier{}
	store := &memorySignalStore{}
	engine := newTestEngine(stream, notifier, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, engine.Start(ctx))
	defer func() { _ = engine.Stop() }()

	fatalErr := errors.New("authentication rejected")
	stream.fatal <- fatalErr

	select {
	case err := <-engine.Fatal():
		assert.Equal(t, fatalErr, err)
	case <-time.After(2 * time.Second):
		t.Fatal("fatal error not surfaced")
	}

	notifier.mu.Lock()
	assert.Len(t, notifier.fatals, 1)
	notifier.mu.Unlock()
}

func TestEngineFatalSurvivesStreamChannelClose(t *testing.T) {
	// The stream client sends its fatal error and then closes both
	// channels on the way out. The dispatcher must deliver the error no
	// matter which closed channel it observes first.
	for i := 0; i < 100; i++ {
		stream := newFakeStream()
		notifier := &recordingNotifier{}
		engine := newTestEngine(stream, notifier, &memorySignalStore{})

		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, engine.Start(ctx))

		fatalErr := errors.New("authentication rejected")
		stream.fatal <- fatalErr
		close(stream.fatal)
		close(stream.events)

		select {
		case err := <-engine.Fatal():
			assert.Equal(t, fatalErr, err)
		case <-time.After(2 * time.Second):
			t.Fatalf("fatal error lost on round %d", i)
		}

		_ = engine.Stop()
		cancel()
	}
}

func TestEngineSecondStandaloneSuppressedWhilePending(t *testing.T) {
	stream := newFakeStream()
	notifier := &recordingNotifier{}
	engine := newTestEngine(stream, notifier, &memorySignalStore{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, engine.Start(ctx))
	defer func() { _ = engine.Stop() }()

	base := time.Date(2025, 3, 10, 10, 15, 0, 0, time.UTC)
	trigger := fullBodyCandle(base, true)
	stream.events <- repository.MarketEvent{Candle: &trigger}

	assert.Eventually(t, func() bool {
		return engine.lifecycle.HasPending("EURUSD_60")
	}, 2*time.Second, 10*time.Millisecond)

	// A synthetic-series detection released standalone after the window
	// finds the key occupied: no second arm, no second notification.
	for _, tk := range []models.Tick{
		{Symbol: "EURUSD", Timestamp: base.Add(time.Second), Bid: 0.999, Ask: 1.001},
		{Symbol: "EURUSD", Timestamp: base.Add(30 * time.Second), Bid: 1.099, Ask: 1.101},
		{Symbol: "EURUSD", Timestamp: base.Add(65 * time.Second), Bid: 1.099, Ask: 1.101},
	} {
		tk := tk
		stream.events <- repository.MarketEvent{Tick: &tk}
	}

	assert.Eventually(t, func() bool {
		st, _ := engine.Instrument("EURUSD")
		return st.Stats().Ticks == 3
	}, 2*time.Second, 10*time.Millisecond)

	// Wait past the correlation window for the standalone release.
	time.Sleep(300 * time.Millisecond)

	notifier.mu.Lock()
	patterns := len(notifier.patterns)
	notifier.mu.Unlock()
	assert.Equal(t, 1, patterns)
	assert.Equal(t, 1, engine.lifecycle.PendingCount())
}

func TestEngineRoutesTicksToInstrument(t *testing.T) {
	stream := newFakeStream()
	notifier := &recordingNotifier{}
	store := &memorySignalStore{}
	engine := newTestEngine(stream, notifier, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, engine.Start(ctx))
	defer func() { _ = engine.Stop() }()

	base := time.Date(2025, 3, 10, 10, 15, 0, 0, time.UTC)
	tick := models.Tick{Symbol: "EURUSD", Timestamp: base, Bid: 1.0, Ask: 1.2}
	stream.events <- repository.MarketEvent{Tick: &tick}

	assert.Eventually(t, func() bool {
		st, _ := engine.Instrument("EURUSD")
		return st.Stats().Ticks == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Unknown symbols are ignored without disturbing the pipeline.
	other := models.Tick{Symbol: "USDJPY", Timestamp: base, Bid: 1, Ask: 1}
	stream.events <- repository.MarketEvent{Tick: &other}
	snapshot := engine.Snapshot()
	assert.Len(t, snapshot, 1)
}
