package repository

import (
	"context"

	"github.com/Maiki02/trading-bot-sub000/internal/domain/models"
)

// MarketEvent is one decoded frame from the provider: either a tick or a
// native candle, never both.
type MarketEvent struct {
	Tick   *models.Tick
	Candle *models.Candle
}

// Instrument names one provider subscription.
type Instrument struct {
	Symbol    string
	Exchange  string
	Timeframe int // seconds
}

// MarketStream is the multiplexed provider connection. One socket carries
// every subscription; parallel per-instrument sockets are forbidden.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, inst Instrument) error
	Unsubscribe(ctx context.Context, inst Instrument) error
	Read(ctx context.Context) (<-chan MarketEvent, <-chan error)
	Close(ctx context.Context) error
	IsConnected() bool
}

// PatternDetector classifies a freshly closed candle. A nil result means
// no pattern.
type PatternDetector interface {
	Detect(key models.SourceKey, candle models.Candle) *models.PatternMatch
}

// Notifier receives the engine's user-facing events.
type Notifier interface {
	PatternDetected(ctx context.Context, key models.SourceKey, match models.PatternMatch, candle models.Candle) error
	SignalConfirmed(ctx context.Context, sig models.ConfirmedSignal) error
	OutcomeResolved(ctx context.Context, outcome models.SignalOutcome) error
	Fatal(ctx context.Context, msg string, err error) error
	Close() error
}

// SignalStore persists one structured record per resolved signal.
type SignalStore interface {
	Init(ctx context.Context) error
	StoreOutcome(ctx context.Context, outcome models.SignalOutcome) error
	Health(ctx context.Context) error
	Close() error
}

// SnapshotCache keeps the latest closed candle per (symbol, series) for
// external readers.
type SnapshotCache interface {
	PutCandle(ctx context.Context, candle models.Candle) error
	Close() error
}

// Metrics is the engine's instrumentation surface.
type Metrics interface {
	RecordTick(symbol string)
	RecordTickDropped(symbol string)
	RecordCandleClosed(symbol string, series string)
	RecordReconnect()
	RecordHeartbeatRTT(seconds float64)
	RecordSignalPending(key string)
	RecordSignalResolved(key string, success bool)
	RecordError(kind string)
}
