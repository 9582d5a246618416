package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tick(ts time.Time, bid, ask float64) Tick {
	return Tick{Symbol: "EURUSD", Timestamp: ts, Bid: bid, Ask: ask}
}

func TestCandleBuilderOHLCFromMids(t *testing.T) {
	base := time.Date(2025, 3, 10, 10, 15, 0, 0, time.UTC)

	b := NewCandleBuilder(tick(base.Add(1*time.Second), 1.05000, 1.05002))
	b.Apply(tick(base.Add(30*time.Second), 1.05010, 1.05012))
	b.Apply(tick(base.Add(59*time.Second), 1.04990, 1.04992))

	c := b.Seal()
	require.Equal(t, base, c.Timestamp)
	assert.InDelta(t, 1.05001, c.Open, 1e-9)
	assert.InDelta(t, 1.05011, c.High, 1e-9)
	assert.InDelta(t, 1.04991, c.Low, 1e-9)
	assert.InDelta(t, 1.04991, c.Close, 1e-9)
	assert.Equal(t, 3, c.TickCount)
	assert.Equal(t, SeriesSynthetic, c.Series)
}

func TestCandleBuilderOutOfOrderWidensExtremes(t *testing.T) {
	base := time.Date(2025, 3, 10, 10, 15, 0, 0, time.UTC)

	b := NewCandleBuilder(tick(base.Add(10*time.Second), 1.2000, 1.2002))
	// Arrives later but stamped earlier within the same bucket: it must
	// not become the open, only stretch high/low and set close.
	b.Apply(tick(base.Add(5*time.Second), 1.2100, 1.2102))

	c := b.Seal()
	assert.InDelta(t, 1.2001, c.Open, 1e-9)
	assert.InDelta(t, 1.2101, c.High, 1e-9)
	assert.InDelta(t, 1.2101, c.Close, 1e-9)
}

func TestCandleBufferEvictsOldest(t *testing.T) {
	const capacity = 5
	buf := NewCandleBuffer(capacity)
	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	for i := 0; i < capacity+1; i++ {
		buf.Append(Candle{
			Symbol:    "EURUSD",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      1, High: 1, Low: 1, Close: 1,
		})
	}

	require.Equal(t, capacity, buf.Len())
	snap := buf.Snapshot()
	// Oldest (minute 0) is gone, minute 1 is now the head.
	assert.Equal(t, base.Add(time.Minute), snap[0].Timestamp)
	last, ok := buf.Last()
	require.True(t, ok)
	assert.Equal(t, base.Add(5*time.Minute), last.Timestamp)
}

func TestCandleValidate(t *testing.T) {
	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	good := Candle{Symbol: "EURUSD", Timestamp: base, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15}
	require.NoError(t, good.Validate())

	bad := good
	bad.High, bad.Low = bad.Low, bad.High
	assert.Error(t, bad.Validate())

	zero := good
	zero.Open = 0
	assert.Error(t, zero.Validate())
}

func TestCandleDirection(t *testing.T) {
	up := Candle{Open: 1.0, Close: 1.1}
	down := Candle{Open: 1.1, Close: 1.0}
	assert.Equal(t, DirectionUp, up.Direction())
	assert.Equal(t, DirectionDown, down.Direction())
}
