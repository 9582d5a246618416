package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// InstrumentConfig names one provider subscription.
type InstrumentConfig struct {
	Symbol    string `yaml:"symbol" validate:"required"`
	Exchange  string `yaml:"exchange" default:"live"`
	Timeframe int    `yaml:"timeframe" default:"60" validate:"gt=0"` // seconds
}

// Config is the full application configuration.
type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production"`

	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`

	Stream struct {
		URL               string        `yaml:"url" validate:"required,url"`
		Session           string        `yaml:"session"`
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval" default:"5s"`
		HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout" default:"15s"`
		WriteTimeout      time.Duration `yaml:"write_timeout" default:"5s"`
		BackoffBase       time.Duration `yaml:"backoff_base" default:"1s"`
		BackoffCap        time.Duration `yaml:"backoff_cap" default:"30s"`
	} `yaml:"stream"`

	Engine struct {
		Instruments       []InstrumentConfig `yaml:"instruments" validate:"min=1,dive"`
		BufferCapacity    int                `yaml:"buffer_capacity" default:"500" validate:"gt=0"`
		TickQueueCapacity int                `yaml:"tick_queue_capacity" default:"1024" validate:"gt=0"`
		CorrelationWindow time.Duration      `yaml:"correlation_window" default:"2s"`
	} `yaml:"engine"`

	Notifier struct {
		Backend string `yaml:"backend" default:"log" validate:"oneof=log kafka"`
	} `yaml:"notifier"`

	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"signal-events"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"1s"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Host         string        `yaml:"host" validate:"required"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"signals"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl" default:"10m"`
	} `yaml:"redis"`
}

// Load reads, defaults, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets and endpoints
// from environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("STREAM_SESSION"); v != "" {
		c.Stream.Session = v
	}
	if v := os.Getenv("STREAM_URL"); v != "" {
		c.Stream.URL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	return c, nil
}

// Validate checks structural rules plus cross-field constraints the tag
// language cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Stream.BackoffCap < c.Stream.BackoffBase {
		return fmt.Errorf("stream.backoff_cap must be >= stream.backoff_base")
	}
	if c.Stream.HeartbeatTimeout <= c.Stream.HeartbeatInterval {
		return fmt.Errorf("stream.heartbeat_timeout must exceed stream.heartbeat_interval")
	}
	if c.Notifier.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when notifier.backend is kafka")
	}
	seen := make(map[string]struct{}, len(c.Engine.Instruments))
	for _, inst := range c.Engine.Instruments {
		if _, dup := seen[inst.Symbol]; dup {
			return fmt.Errorf("duplicate instrument %s", inst.Symbol)
		}
		seen[inst.Symbol] = struct{}{}
	}
	return nil
}
