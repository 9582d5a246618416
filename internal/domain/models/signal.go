package models

import (
	"fmt"
	"time"
)

// Direction is the expected or observed movement of the next candle.
type Direction string

const (
	DirectionUp   Direction = "green"
	DirectionDown Direction = "red"
)

// SourceKey identifies one (instrument, timeframe) signal stream,
// e.g. "EURUSD_60".
type SourceKey string

// NewSourceKey builds the canonical key for a symbol and timeframe.
func NewSourceKey(symbol string, timeframe time.Duration) SourceKey {
	return SourceKey(fmt.Sprintf("%s_%d", symbol, int(timeframe.Seconds())))
}

// PatternMatch is what the external PatternDetector returns for a closed
// candle: the pattern name, its confidence and the move it anticipates.
type PatternMatch struct {
	Pattern           string
	Confidence        float64
	ExpectedDirection Direction
}

// PatternCandidate is a detection from one series awaiting correlation
// with the other series. It lives only inside the correlator buffer.
type PatternCandidate struct {
	Key        SourceKey
	Source     SeriesKind
	Symbol     string
	Pattern    string
	Confidence float64
	Expected   Direction
	Trigger    Candle
	DetectedAt time.Time
}

// ConfirmedSignal is the merge of two candidates for the same
// (symbol, pattern) arriving within the correlation window.
type ConfirmedSignal struct {
	Symbol      string
	Pattern     string
	Expected    Direction
	Confidence  float64
	Sources     []SeriesKind
	ConfirmedAt time.Time
}

// PendingSignal is a detected pattern awaiting resolution against the
// next closed candle of its source key. At most one exists per key.
type PendingSignal struct {
	Key           SourceKey
	Pattern       string
	Expected      Direction
	TriggerCandle Candle
	CreatedAt     time.Time
}

// SignalOutcome records how a pending signal resolved.
type SignalOutcome struct {
	Key               SourceKey
	Pattern           string
	Expected          Direction
	Actual            Direction
	Success           bool
	PnL               float64
	TriggerCandle     Candle
	OutcomeCandle     Candle
	TimestampGap      time.Duration
	HasSkippedCandles bool
	ResolvedAt        time.Time
}
