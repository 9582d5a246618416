package pattern

import (
	"github.com/Maiki02/trading-bot-sub000/internal/domain/models"
	"github.com/Maiki02/trading-bot-sub000/internal/domain/repository"
)

// BodyMomentum is the default detector wired by the app: a candle whose
// body fills most of its range is read as momentum expected to carry into
// the next candle. Real deployments inject their own PatternDetector.
type BodyMomentum struct {
	minBodyRatio  float64
	minConfidence float64
}

// NewBodyMomentum creates the detector. minBodyRatio is the body/range
// ratio at which a candle qualifies, typically 0.7-0.9.
func NewBodyMomentum(minBodyRatio float64) *BodyMomentum {
	if minBodyRatio <= 0 || minBodyRatio > 1 {
		minBodyRatio = 0.8
	}
	return &BodyMomentum{minBodyRatio: minBodyRatio}
}

// Detect returns a FULL_BODY match when the candle body dominates its
// range, nil otherwise.
func (d *BodyMomentum) Detect(_ models.SourceKey, c models.Candle) *models.PatternMatch {
	rng := c.High - c.Low
	if rng <= 0 {
		return nil
	}
	body := c.Close - c.Open
	if body < 0 {
		body = -body
	}
	ratio := body / rng
	if ratio < d.minBodyRatio {
		return nil
	}
	return &models.PatternMatch{
		Pattern:           "FULL_BODY",
		Confidence:        ratio,
		ExpectedDirection: c.Direction(),
	}
}

var _ repository.PatternDetector = (*BodyMomentum)(nil)
