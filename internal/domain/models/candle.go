package models

import (
	"fmt"
	"time"
)

// SeriesKind distinguishes the provider-reported candle series from the
// one synthesized locally out of tick mid prices.
type SeriesKind string

const (
	SeriesNative    SeriesKind = "native"
	SeriesSynthetic SeriesKind = "mid"
)

// Candle is an immutable OHLC aggregate over one time bucket.
type Candle struct {
	Symbol    string
	Series    SeriesKind
	Timestamp time.Time // bucket start
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	TickCount int
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Direction returns "green" for a bullish close, "red" otherwise.
func (c Candle) Direction() Direction {
	if c.Bullish() {
		return DirectionUp
	}
	return DirectionDown
}

// Validate rejects candles with unusable OHLC data.
func (c Candle) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("candle: empty symbol")
	}
	if c.Timestamp.IsZero() {
		return fmt.Errorf("candle: zero timestamp")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("candle: non-positive OHLC")
	}
	if c.High < c.Low {
		return fmt.Errorf("candle: high %v below low %v", c.High, c.Low)
	}
	return nil
}

// CandleBuilder accumulates ticks for one minute bucket. Exactly one
// builder is active per instrument series; it is mutated only by the
// instrument's consumer goroutine.
type CandleBuilder struct {
	Symbol    string
	Bucket    time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	TickCount int
}

// NewCandleBuilder opens a builder at the tick's minute bucket, seeding
// all four prices with the first mid.
func NewCandleBuilder(t Tick) *CandleBuilder {
	mid := t.Mid()
	return &CandleBuilder{
		Symbol:    t.Symbol,
		Bucket:    t.Timestamp.Truncate(time.Minute),
		Open:      mid,
		High:      mid,
		Low:       mid,
		Close:     mid,
		TickCount: 1,
	}
}

// BucketOf returns the minute bucket a tick falls into.
func BucketOf(t Tick) time.Time { return t.Timestamp.Truncate(time.Minute) }

// Apply folds a tick into the builder. Out-of-order ticks inside the
// bucket widen high/low but never replace open; close always tracks the
// most recently received tick.
func (b *CandleBuilder) Apply(t Tick) {
	mid := t.Mid()
	if mid > b.High {
		b.High = mid
	}
	if mid < b.Low {
		b.Low = mid
	}
	b.Close = mid
	b.TickCount++
}

// Seal promotes the builder into an immutable synthetic candle.
func (b *CandleBuilder) Seal() Candle {
	return Candle{
		Symbol:    b.Symbol,
		Series:    SeriesSynthetic,
		Timestamp: b.Bucket,
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		TickCount: b.TickCount,
	}
}

// CandleBuffer is a fixed-capacity FIFO of closed candles; appending at
// capacity evicts the oldest entry. Not safe for concurrent use, callers
// hold the owning instrument's lock.
type CandleBuffer struct {
	cap   int
	items []Candle
}

// NewCandleBuffer creates a buffer holding at most capacity candles.
func NewCandleBuffer(capacity int) *CandleBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &CandleBuffer{cap: capacity, items: make([]Candle, 0, capacity)}
}

// Append adds a candle, evicting the oldest when full.
func (cb *CandleBuffer) Append(c Candle) {
	if len(cb.items) == cb.cap {
		copy(cb.items, cb.items[1:])
		cb.items = cb.items[:cb.cap-1]
	}
	cb.items = append(cb.items, c)
}

// Len returns the number of buffered candles.
func (cb *CandleBuffer) Len() int { return len(cb.items) }

// Last returns the most recent candle, if any.
func (cb *CandleBuffer) Last() (Candle, bool) {
	if len(cb.items) == 0 {
		return Candle{}, false
	}
	return cb.items[len(cb.items)-1], true
}

// Snapshot copies the buffered candles oldest-first.
func (cb *CandleBuffer) Snapshot() []Candle {
	out := make([]Candle, len(cb.items))
	copy(out, cb.items)
	return out
}
