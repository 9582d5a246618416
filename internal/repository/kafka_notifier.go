package repository

import (
	"context"
	"time"

	"github.com/Maiki02/trading-bot-sub000/internal/domain/models"
	domrepo "github.com/Maiki02/trading-bot-sub000/internal/domain/repository"
	pkgkafka "github.com/Maiki02/trading-bot-sub000/pkg/kafka"
)

// Event type discriminators on the signal-events topic.
const (
	eventPatternDetected = "pattern_detected"
	eventSignalConfirmed = "signal_confirmed"
	eventOutcomeResolved = "outcome_resolved"
	eventFatal           = "fatal"
)

type signalEvent struct {
	Type      string      `json:"type"`
	Key       string      `json:"key,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// KafkaNotifier publishes engine events to a Kafka topic. Events sharing
// a source key are hashed onto one partition to preserve their order.
type KafkaNotifier struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaNotifier creates a notifier over an existing producer.
func NewKafkaNotifier(producer *pkgkafka.Producer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) publish(ctx context.Context, key string, ev signalEvent) error {
	ev.Timestamp = time.Now().UTC()
	return n.producer.Publish(ctx, n.topic, []byte(key), ev)
}

func (n *KafkaNotifier) PatternDetected(ctx context.Context, key models.SourceKey, match models.PatternMatch, candle models.Candle) error {
	return n.publish(ctx, string(key), signalEvent{
		Type: eventPatternDetected,
		Key:  string(key),
		Payload: map[string]interface{}{
			"pattern":    match.Pattern,
			"confidence": match.Confidence,
			"expected":   match.ExpectedDirection,
			"candle":     candle,
		},
	})
}

func (n *KafkaNotifier) SignalConfirmed(ctx context.Context, sig models.ConfirmedSignal) error {
	return n.publish(ctx, sig.Symbol, signalEvent{
		Type:    eventSignalConfirmed,
		Key:     sig.Symbol,
		Payload: sig,
	})
}

func (n *KafkaNotifier) OutcomeResolved(ctx context.Context, outcome models.SignalOutcome) error {
	return n.publish(ctx, string(outcome.Key), signalEvent{
		Type:    eventOutcomeResolved,
		Key:     string(outcome.Key),
		Payload: outcome,
	})
}

func (n *KafkaNotifier) Fatal(ctx context.Context, msg string, err error) error {
	return n.publish(ctx, eventFatal, signalEvent{
		Type: eventFatal,
		Payload: map[string]string{
			"message": msg,
			"error":   err.Error(),
		},
	})
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}

var _ domrepo.Notifier = (*KafkaNotifier)(nil)
