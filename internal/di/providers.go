package di

import (
	"fmt"

	domrepo "github.com/Maiki02/trading-bot-sub000/internal/domain/repository"
	internalrepo "github.com/Maiki02/trading-bot-sub000/internal/repository"
	"github.com/Maiki02/trading-bot-sub000/internal/service/pattern"
	"github.com/Maiki02/trading-bot-sub000/internal/service/stream"
	"github.com/Maiki02/trading-bot-sub000/internal/usecase"
	pkgch "github.com/Maiki02/trading-bot-sub000/pkg/clickhouse"
	"github.com/Maiki02/trading-bot-sub000/pkg/config"
	pkgkafka "github.com/Maiki02/trading-bot-sub000/pkg/kafka"
	"github.com/Maiki02/trading-bot-sub000/pkg/logger"
	"github.com/Maiki02/trading-bot-sub000/pkg/metrics"
	"github.com/Maiki02/trading-bot-sub000/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideMarketStream creates the provider websocket client.
func ProvideMarketStream(cfg *config.Config, log *logger.Logger, m domrepo.Metrics) domrepo.MarketStream {
	return stream.New(stream.Config{
		URL:               cfg.Stream.URL,
		Session:           cfg.Stream.Session,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		HeartbeatTimeout:  cfg.Stream.HeartbeatTimeout,
		WriteTimeout:      cfg.Stream.WriteTimeout,
		BackoffBase:       cfg.Stream.BackoffBase,
		BackoffCap:        cfg.Stream.BackoffCap,
	}, log, m)
}

// ProvidePatternDetector creates the default detector.
func ProvidePatternDetector() domrepo.PatternDetector {
	return pattern.NewBodyMomentum(0.8)
}

// ProvideClickHouseClient creates and pings the ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSignalStore creates the resolved-signal store.
func ProvideSignalStore(client *pkgch.Client, cfg *config.Config) domrepo.SignalStore {
	return internalrepo.NewClickHouseSignalStore(client, cfg.ClickHouse.Database)
}

// ProvideNotifier selects the notification backend from config.
func ProvideNotifier(cfg *config.Config, log *logger.Logger) (domrepo.Notifier, error) {
	switch cfg.Notifier.Backend {
	case "kafka":
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(cfg.Kafka.Brokers),
			pkgkafka.WithCompression(cfg.Kafka.Compression),
			pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
			pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
			pkgkafka.WithBatchTimeout(cfg.Kafka.Linger),
			pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
			pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
			pkgkafka.WithHashByKey(true),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		return internalrepo.NewKafkaNotifier(producer, cfg.Kafka.Topic), nil
	default:
		return internalrepo.NewLogNotifier(log), nil
	}
}

// ProvideSnapshotCache creates the Redis candle snapshot cache, or nil
// when disabled.
func ProvideSnapshotCache(cfg *config.Config) (domrepo.SnapshotCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	cache, err := internalrepo.NewRedisSnapshot(internalrepo.RedisSnapshotConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("redis snapshot: %w", err)
	}
	return cache, nil
}

// ProvideEngine assembles the ingestion engine.
func ProvideEngine(
	cfg *config.Config,
	ms domrepo.MarketStream,
	detector domrepo.PatternDetector,
	notifier domrepo.Notifier,
	store domrepo.SignalStore,
	cache domrepo.SnapshotCache,
	m domrepo.Metrics,
	log *logger.Logger,
) *usecase.Engine {
	instruments := make([]domrepo.Instrument, 0, len(cfg.Engine.Instruments))
	for _, ic := range cfg.Engine.Instruments {
		instruments = append(instruments, domrepo.Instrument{
			Symbol:    ic.Symbol,
			Exchange:  ic.Exchange,
			Timeframe: ic.Timeframe,
		})
	}
	return usecase.NewEngine(usecase.EngineConfig{
		Instruments:       instruments,
		BufferCapacity:    cfg.Engine.BufferCapacity,
		TickQueueCapacity: cfg.Engine.TickQueueCapacity,
		CorrelationWindow: cfg.Engine.CorrelationWindow,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	}, ms, detector, notifier, store, cache, m, log)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	engine *usecase.Engine,
	notifier domrepo.Notifier,
	store domrepo.SignalStore,
	cache domrepo.SnapshotCache,
	log *logger.Logger,
) *server.App {
	return server.New(cfg, engine, notifier, store, cache, log)
}
