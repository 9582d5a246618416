package stream

import (
	"sync"

	"github.com/Maiki02/trading-bot-sub000/internal/domain/repository"
)

// Registry maps subscribed instruments to provider channel ids. Subscribe
// requests are keyed by request id until the provider acks them with a
// channel assignment; data frames are then routed by channel id.
type Registry struct {
	mu         sync.Mutex
	nextReqID  int64
	byRequest  map[int64]repository.Instrument
	byChannel  map[int64]repository.Instrument
	bySymbol   map[string]int64 // symbol -> channel id, once bound
	active     map[string]repository.Instrument
}

// NewRegistry creates an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{
		byRequest: make(map[int64]repository.Instrument),
		byChannel: make(map[int64]repository.Instrument),
		bySymbol:  make(map[string]int64),
		active:    make(map[string]repository.Instrument),
	}
}

// Add records an intent to subscribe and returns the request id to send.
func (r *Registry) Add(inst repository.Instrument) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextReqID++
	id := r.nextReqID
	r.byRequest[id] = inst
	r.active[inst.Symbol] = inst
	return id
}

// Bind resolves a subscribe ack: the provider assigned channelID to the
// instrument requested under requestID.
func (r *Registry) Bind(requestID, channelID int64) (repository.Instrument, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.byRequest[requestID]
	if !ok {
		return repository.Instrument{}, false
	}
	delete(r.byRequest, requestID)
	r.byChannel[channelID] = inst
	r.bySymbol[inst.Symbol] = channelID
	return inst, true
}

// Resolve returns the instrument bound to a data frame's channel id.
func (r *Registry) Resolve(channelID int64) (repository.Instrument, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.byChannel[channelID]
	return inst, ok
}

// Remove drops the subscription and returns the bound channel id, if any,
// so the caller can send the unsubscribe command.
func (r *Registry) Remove(symbol string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, symbol)
	ch, ok := r.bySymbol[symbol]
	if !ok {
		return 0, false
	}
	delete(r.bySymbol, symbol)
	delete(r.byChannel, ch)
	return ch, true
}

// Active lists instruments that must be restored after a reconnect.
func (r *Registry) Active() []repository.Instrument {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repository.Instrument, 0, len(r.active))
	for _, inst := range r.active {
		out = append(out, inst)
	}
	return out
}

// Channels lists currently bound channel ids.
func (r *Registry) Channels() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.bySymbol))
	for _, ch := range r.bySymbol {
		out = append(out, ch)
	}
	return out
}

// ClearBindings forgets channel assignments but keeps the active set.
// Called on disconnect: the next connect re-subscribes everything and the
// provider assigns fresh channels.
func (r *Registry) ClearBindings() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byRequest = make(map[int64]repository.Instrument)
	r.byChannel = make(map[int64]repository.Instrument)
	r.bySymbol = make(map[string]int64)
}
