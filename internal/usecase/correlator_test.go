package usecase

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maiki02/trading-bot-sub000/internal/domain/models"
	"github.com/Maiki02/trading-bot-sub000/pkg/logger"
)

type correlatorSink struct {
	mu         sync.Mutex
	confirmed  []models.ConfirmedSignal
	standalone []models.PatternCandidate
}

func (s *correlatorSink) onConfirmed(sig models.ConfirmedSignal, _ models.PatternCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = append(s.confirmed, sig)
}

func (s *correlatorSink) onStandalone(c models.PatternCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.standalone = append(s.standalone, c)
}

func (s *correlatorSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.confirmed), len(s.standalone)
}

func candidate(source models.SeriesKind, at time.Time) models.PatternCandidate {
	return models.PatternCandidate{
		Key:        "EURUSD_60",
		Source:     source,
		Symbol:     "EURUSD",
		Pattern:    "SHOOTING_STAR",
		Confidence: 0.7,
		Expected:   models.DirectionDown,
		DetectedAt: at,
	}
}

func TestCorrelatorMergesTwoSourcesWithinWindow(t *testing.T) {
	sink := &correlatorSink{}
	dc := NewDualSourceCorrelator(2*time.Second, logger.Nop(), sink.onConfirmed, sink.onStandalone)
	defer dc.Close()

	now := time.Now()
	dc.Submit(candidate(models.SeriesNative, now))
	dc.Submit(candidate(models.SeriesSynthetic, now.Add(1300*time.Millisecond)))

	confirmed, standalone := sink.counts()
	require.Equal(t, 1, confirmed)
	assert.Equal(t, 0, standalone)
	assert.Equal(t, 0, dc.PendingCount())

	sig := sink.confirmed[0]
	assert.ElementsMatch(t,
		[]models.SeriesKind{models.SeriesNative, models.SeriesSynthetic},
		sig.Sources)
	// Timestamped at the second candidate's arrival.
	assert.Equal(t, now.Add(1300*time.Millisecond), sig.ConfirmedAt)
}

func TestCorrelatorReleasesStandaloneOnExpiry(t *testing.T) {
	sink := &correlatorSink{}
	dc := NewDualSourceCorrelator(50*time.Millisecond, logger.Nop(), sink.onConfirmed, sink.onStandalone)
	defer dc.Close()

	dc.Submit(candidate(models.SeriesNative, time.Now()))

	assert.Eventually(t, func() bool {
		confirmed, standalone := sink.counts()
		return confirmed == 0 && standalone == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, dc.PendingCount())
}

func TestCorrelatorLateSecondSourceNotMerged(t *testing.T) {
	sink := &correlatorSink{}
	dc := NewDualSourceCorrelator(50*time.Millisecond, logger.Nop(), sink.onConfirmed, sink.onStandalone)
	defer dc.Close()

	dc.Submit(candidate(models.SeriesNative, time.Now()))
	time.Sleep(120 * time.Millisecond) // past expiry
	dc.Submit(candidate(models.SeriesSynthetic, time.Now()))

	assert.Eventually(t, func() bool {
		confirmed, standalone := sink.counts()
		return confirmed == 0 && standalone == 2
	}, time.Second, 10*time.Millisecond)
}

func TestCorrelatorSameSourceRefreshReleasesOlder(t *testing.T) {
	sink := &correlatorSink{}
	dc := NewDualSourceCorrelator(time.Minute, logger.Nop(), sink.onConfirmed, sink.onStandalone)
	defer dc.Close()

	first := candidate(models.SeriesNative, time.Now())
	dc.Submit(first)
	dc.Submit(candidate(models.SeriesNative, time.Now()))

	confirmed, standalone := sink.counts()
	assert.Equal(t, 0, confirmed)
	require.Equal(t, 1, standalone)
	assert.Equal(t, first.DetectedAt, sink.standalone[0].DetectedAt)
	assert.Equal(t, 1, dc.PendingCount())
}

func TestCorrelatorCloseDropsPendingWithoutEmission(t *testing.T) {
	sink := &correlatorSink{}
	dc := NewDualSourceCorrelator(20*time.Millisecond, logger.Nop(), sink.onConfirmed, sink.onStandalone)

	dc.Submit(candidate(models.SeriesNative, time.Now()))
	dc.Close()
	time.Sleep(60 * time.Millisecond)

	confirmed, standalone := sink.counts()
	assert.Equal(t, 0, confirmed)
	assert.Equal(t, 0, standalone)
}
