package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Maiki02/trading-bot-sub000/internal/domain/repository"
)

func inst(symbol string) repository.Instrument {
	return repository.Instrument{Symbol: symbol, Exchange: "live", Timeframe: 60}
}

func TestRegistryBindRoutesDataFrames(t *testing.T) {
	r := NewRegistry()

	reqEUR := r.Add(inst("EURUSD"))
	reqGBP := r.Add(inst("GBPUSD"))
	assert.NotEqual(t, reqEUR, reqGBP)

	bound, ok := r.Bind(reqEUR, 7)
	assert.True(t, ok)
	assert.Equal(t, "EURUSD", bound.Symbol)

	// Acks for unknown request ids are ignored.
	_, ok = r.Bind(999, 8)
	assert.False(t, ok)

	got, ok := r.Resolve(7)
	assert.True(t, ok)
	assert.Equal(t, "EURUSD", got.Symbol)

	// GBPUSD was requested but never acked; its channel resolves nothing.
	_, ok = r.Resolve(8)
	assert.False(t, ok)
}

func TestRegistryRemoveReturnsChannelForUnsubscribe(t *testing.T) {
	r := NewRegistry()
	req := r.Add(inst("EURUSD"))
	r.Bind(req, 7)

	ch, ok := r.Remove("EURUSD")
	assert.True(t, ok)
	assert.Equal(t, int64(7), ch)

	_, ok = r.Resolve(7)
	assert.False(t, ok)
	assert.Empty(t, r.Active())

	// Removing a symbol that was never bound reports no channel.
	r.Add(inst("GBPUSD"))
	_, ok = r.Remove("GBPUSD")
	assert.False(t, ok)
}

func TestRegistryClearBindingsKeepsActiveSet(t *testing.T) {
	r := NewRegistry()
	req1 := r.Add(inst("EURUSD"))
	req2 := r.Add(inst("GBPUSD"))
	r.Bind(req1, 7)
	r.Bind(req2, 9)
	assert.Len(t, r.Channels(), 2)

	r.ClearBindings()

	assert.Empty(t, r.Channels())
	_, ok := r.Resolve(7)
	assert.False(t, ok)

	// The active set survives so a reconnect can restore subscriptions.
	active := r.Active()
	syms := []string{active[0].Symbol, active[1].Symbol}
	assert.ElementsMatch(t, []string{"EURUSD", "GBPUSD"}, syms)
}
