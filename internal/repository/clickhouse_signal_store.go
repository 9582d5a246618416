package repository

import (
	"context"
	"fmt"

	"github.com/Maiki02/trading-bot-sub000/internal/domain/models"
	domrepo "github.com/Maiki02/trading-bot-sub000/internal/domain/repository"
	pkgch "github.com/Maiki02/trading-bot-sub000/pkg/clickhouse"
)

// ClickHouseSignalStore persists one row per resolved signal: trigger
// candle, outcome candle and resolution metadata.
type ClickHouseSignalStore struct {
	client   *pkgch.Client
	database string
	table    string
}

// NewClickHouseSignalStore creates the store over an existing client.
func NewClickHouseSignalStore(client *pkgch.Client, database string) *ClickHouseSignalStore {
	return &ClickHouseSignalStore{
		client:   client,
		database: database,
		table:    database + ".signal_outcomes",
	}
}

// Init ensures database and table exist. Idempotent.
func (s *ClickHouseSignalStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + s.database,
		`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
			source_key String,
			pattern String,
			expected_direction String,
			actual_direction String,
			success UInt8,
			pnl Float64,
			trigger_ts DateTime,
			trigger_open Float64,
			trigger_high Float64,
			trigger_low Float64,
			trigger_close Float64,
			outcome_ts DateTime,
			outcome_open Float64,
			outcome_high Float64,
			outcome_low Float64,
			outcome_close Float64,
			gap_seconds Int64,
			has_skipped_candles UInt8,
			resolved_at DateTime
		) ENGINE = MergeTree ORDER BY (source_key, resolved_at)`,
	})
}

// StoreOutcome inserts one resolved signal.
func (s *ClickHouseSignalStore) StoreOutcome(ctx context.Context, o models.SignalOutcome) error {
	query := `INSERT INTO ` + s.table + ` (
		source_key, pattern, expected_direction, actual_direction, success, pnl,
		trigger_ts, trigger_open, trigger_high, trigger_low, trigger_close,
		outcome_ts, outcome_open, outcome_high, outcome_low, outcome_close,
		gap_seconds, has_skipped_candles, resolved_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.client.DB().ExecContext(ctx, query,
		string(o.Key), o.Pattern, string(o.Expected), string(o.Actual),
		boolToUInt8(o.Success), o.PnL,
		o.TriggerCandle.Timestamp, o.TriggerCandle.Open, o.TriggerCandle.High,
		o.TriggerCandle.Low, o.TriggerCandle.Close,
		o.OutcomeCandle.Timestamp, o.OutcomeCandle.Open, o.OutcomeCandle.High,
		o.OutcomeCandle.Low, o.OutcomeCandle.Close,
		int64(o.TimestampGap.Seconds()), boolToUInt8(o.HasSkippedCandles),
		o.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outcome %s: %w", o.Key, err)
	}
	return nil
}

// Health pings ClickHouse.
func (s *ClickHouseSignalStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close closes the underlying client.
func (s *ClickHouseSignalStore) Close() error {
	return s.client.Close()
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

var _ domrepo.SignalStore = (*ClickHouseSignalStore)(nil)
