package repository

import (
	"context"

	"github.com/Maiki02/trading-bot-sub000/internal/domain/models"
	domrepo "github.com/Maiki02/trading-bot-sub000/internal/domain/repository"
	"github.com/Maiki02/trading-bot-sub000/pkg/logger"
)

// LogNotifier writes engine events to the structured log. Default backend
// when Kafka is disabled.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notifier")}
}

func (n *LogNotifier) PatternDetected(_ context.Context, key models.SourceKey, match models.PatternMatch, candle models.Candle) error {
	n.log.Info("pattern detected",
		logger.String("key", string(key)),
		logger.String("pattern", match.Pattern),
		logger.Float64("confidence", match.Confidence),
		logger.String("expected", string(match.ExpectedDirection)),
		logger.Time("candle", candle.Timestamp))
	return nil
}

func (n *LogNotifier) SignalConfirmed(_ context.Context, sig models.ConfirmedSignal) error {
	n.log.Info("signal confirmed",
		logger.String("symbol", sig.Symbol),
		logger.String("pattern", sig.Pattern),
		logger.Float64("confidence", sig.Confidence),
		logger.Any("sources", sig.Sources))
	return nil
}

func (n *LogNotifier) OutcomeResolved(_ context.Context, outcome models.SignalOutcome) error {
	n.log.Info("outcome resolved",
		logger.String("key", string(outcome.Key)),
		logger.String("pattern", outcome.Pattern),
		logger.Bool("success", outcome.Success),
		logger.Float64("pnl", outcome.PnL),
		logger.Bool("skipped_candles", outcome.HasSkippedCandles))
	return nil
}

func (n *LogNotifier) Fatal(_ context.Context, msg string, err error) error {
	n.log.Error(msg, logger.Error(err))
	return nil
}

func (n *LogNotifier) Close() error { return nil }

var _ domrepo.Notifier = (*LogNotifier)(nil)
