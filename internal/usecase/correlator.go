package usecase

import (
	"sync"
	"time"

	"github.com/Maiki02/trading-bot-sub000/internal/domain/models"
	"github.com/Maiki02/trading-bot-sub000/pkg/logger"
)

type pairKey struct {
	symbol  string
	pattern string
}

type correlatorEntry struct {
	candidate models.PatternCandidate
	timer     *time.Timer
}

// DualSourceCorrelator buffers pattern candidates per (symbol, pattern)
// and merges two candidates from different series arriving within the
// window into one confirmed signal. A candidate that stays alone until
// its window expires is released standalone. Every candidate results in
// exactly one emission.
type DualSourceCorrelator struct {
	window time.Duration
	log    *logger.Logger

	onConfirmed  func(models.ConfirmedSignal, models.PatternCandidate)
	onStandalone func(models.PatternCandidate)

	mu      sync.Mutex
	pending map[pairKey]*correlatorEntry
	closed  bool
}

// NewDualSourceCorrelator creates a correlator. onConfirmed receives the
// merged signal plus the second (confirming) candidate; onStandalone
// receives candidates whose window expired unmatched. Expiry is a hard
// deadline enforced by a scheduled timer, not polling.
func NewDualSourceCorrelator(
	window time.Duration,
	log *logger.Logger,
	onConfirmed func(models.ConfirmedSignal, models.PatternCandidate),
	onStandalone func(models.PatternCandidate),
) *DualSourceCorrelator {
	return &DualSourceCorrelator{
		window:       window,
		log:          log.Named("correlator"),
		onConfirmed:  onConfirmed,
		onStandalone: onStandalone,
		pending:      make(map[pairKey]*correlatorEntry),
	}
}

// Submit offers a candidate for correlation.
func (dc *DualSourceCorrelator) Submit(cand models.PatternCandidate) {
	key := pairKey{symbol: cand.Symbol, pattern: cand.Pattern}

	dc.mu.Lock()
	if dc.closed {
		dc.mu.Unlock()
		return
	}

	entry, ok := dc.pending[key]
	if ok && entry.candidate.Source != cand.Source {
		// Second source inside the window: merge into one confirmed
		// signal timestamped at this arrival.
		entry.timer.Stop()
		delete(dc.pending, key)
		first := entry.candidate
		dc.mu.Unlock()

		conf := first.Confidence
		if cand.Confidence > conf {
			conf = cand.Confidence
		}
		dc.onConfirmed(models.ConfirmedSignal{
			Symbol:      cand.Symbol,
			Pattern:     cand.Pattern,
			Expected:    cand.Expected,
			Confidence:  conf,
			Sources:     []models.SeriesKind{first.Source, cand.Source},
			ConfirmedAt: cand.DetectedAt,
		}, cand)
		return
	}

	if ok {
		// Same source fired again before expiry: release the older
		// candidate now, the fresh one takes over the slot.
		entry.timer.Stop()
		old := entry.candidate
		delete(dc.pending, key)
		dc.mu.Unlock()
		dc.onStandalone(old)
		dc.mu.Lock()
		if dc.closed {
			dc.mu.Unlock()
			return
		}
	}

	e := &correlatorEntry{candidate: cand}
	e.timer = time.AfterFunc(dc.window, func() { dc.expire(key) })
	dc.pending[key] = e
	dc.mu.Unlock()
}

func (dc *DualSourceCorrelator) expire(key pairKey) {
	dc.mu.Lock()
	entry, ok := dc.pending[key]
	if !ok {
		dc.mu.Unlock()
		return
	}
	delete(dc.pending, key)
	dc.mu.Unlock()

	dc.log.Debug("correlation window expired",
		logger.String("symbol", key.symbol),
		logger.String("pattern", key.pattern))
	dc.onStandalone(entry.candidate)
}

// PendingCount returns the number of buffered candidates.
func (dc *DualSourceCorrelator) PendingCount() int {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return len(dc.pending)
}

// Close cancels all timers. Buffered candidates are dropped: an emission
// after shutdown would race the closed downstream collaborators.
func (dc *DualSourceCorrelator) Close() {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.closed = true
	for key, entry := range dc.pending {
		entry.timer.Stop()
		delete(dc.pending, key)
	}
}
