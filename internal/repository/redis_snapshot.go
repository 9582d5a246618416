package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Maiki02/trading-bot-sub000/internal/domain/models"
	domrepo "github.com/Maiki02/trading-bot-sub000/internal/domain/repository"
)

// RedisSnapshot keeps the latest closed candle per (symbol, series) with
// a TTL, so dashboards and sibling services can read current state
// without touching the engine.
type RedisSnapshot struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisSnapshotConfig holds connection settings.
type RedisSnapshotConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisSnapshot connects and pings Redis.
func NewRedisSnapshot(cfg RedisSnapshotConfig) (*RedisSnapshot, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisSnapshot{client: client, ttl: ttl}, nil
}

// PutCandle stores the candle under candle:<symbol>:<series>.
func (r *RedisSnapshot) PutCandle(ctx context.Context, c models.Candle) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal candle: %w", err)
	}
	key := fmt.Sprintf("candle:%s:%s", c.Symbol, c.Series)
	if err := r.client.Set(ctx, key, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// GetCandle reads the latest candle for symbol and series.
func (r *RedisSnapshot) GetCandle(ctx context.Context, symbol string, series models.SeriesKind) (*models.Candle, error) {
	key := fmt.Sprintf("candle:%s:%s", symbol, series)
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	var c models.Candle
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal candle: %w", err)
	}
	return &c, nil
}

// Close closes the Redis client.
func (r *RedisSnapshot) Close() error {
	return r.client.Close()
}

var _ domrepo.SnapshotCache = (*RedisSnapshot)(nil)
