package models

import "time"

// Tick is a single bid/ask quote update for one instrument.
// Immutable once decoded from the wire.
type Tick struct {
	Symbol    string
	Timestamp time.Time
	Bid       float64
	Ask       float64
}

// Mid returns the mid price used to build the synthetic candle series.
func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// Valid reports whether the tick carries usable quote data.
func (t Tick) Valid() bool {
	return t.Symbol != "" && !t.Timestamp.IsZero() && t.Bid > 0 && t.Ask > 0
}
