package usecase

import (
	"sync"
	"time"

	"github.com/Maiki02/trading-bot-sub000/internal/domain/models"
	"github.com/Maiki02/trading-bot-sub000/pkg/logger"
)

// SignalLifecycleManager tracks pending signals per source key and
// resolves each against the next closed candle for that key. A key holds
// zero or one pending signal, never more.
type SignalLifecycleManager struct {
	mu      sync.Mutex
	pending map[models.SourceKey]models.PendingSignal
	log     *logger.Logger
}

// NewSignalLifecycleManager creates an empty manager. Pending signals do
// not survive a process restart; a signal in flight at shutdown is lost.
func NewSignalLifecycleManager(log *logger.Logger) *SignalLifecycleManager {
	return &SignalLifecycleManager{
		pending: make(map[models.SourceKey]models.PendingSignal),
		log:     log.Named("lifecycle"),
	}
}

// Arm creates a pending signal for the key unless one already exists.
// Returns false when the key is occupied.
func (m *SignalLifecycleManager) Arm(sig models.PendingSignal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pending[sig.Key]; exists {
		return false
	}
	m.pending[sig.Key] = sig
	return true
}

// Resolve settles the pending signal for key against the freshly closed
// candle, if one exists. A timestamp gap different from the expected
// interval is recorded as an anomaly, never an error.
func (m *SignalLifecycleManager) Resolve(key models.SourceKey, outcome models.Candle, expectedInterval time.Duration) *models.SignalOutcome {
	m.mu.Lock()
	sig, ok := m.pending[key]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.pending, key)
	m.mu.Unlock()

	actual := outcome.Direction()
	gap := outcome.Timestamp.Sub(sig.TriggerCandle.Timestamp)

	var pnl float64
	if sig.Expected == models.DirectionUp {
		pnl = outcome.Close - sig.TriggerCandle.Close
	} else {
		pnl = sig.TriggerCandle.Close - outcome.Close
	}

	res := &models.SignalOutcome{
		Key:               key,
		Pattern:           sig.Pattern,
		Expected:          sig.Expected,
		Actual:            actual,
		Success:           actual == sig.Expected,
		PnL:               pnl,
		TriggerCandle:     sig.TriggerCandle,
		OutcomeCandle:     outcome,
		TimestampGap:      gap,
		HasSkippedCandles: gap != expectedInterval,
		ResolvedAt:        time.Now().UTC(),
	}
	if res.HasSkippedCandles {
		m.log.Warn("temporal gap anomaly",
			logger.String("key", string(key)),
			logger.Duration("gap", gap),
			logger.Duration("expected", expectedInterval))
	}
	return res
}

// HasPending reports whether key carries an unresolved signal.
func (m *SignalLifecycleManager) HasPending(key models.SourceKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[key]
	return ok
}

// PendingCount returns the number of keys with an armed signal.
func (m *SignalLifecycleManager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
