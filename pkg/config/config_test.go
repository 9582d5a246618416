package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
stream:
  url: wss://stream.example.com/v1
  session: local-session
engine:
  instruments:
    - symbol: EURUSD
    - symbol: GBPUSD
      timeframe: 300
clickhouse:
  host: localhost
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Stream.HeartbeatInterval)
	assert.Equal(t, 15*time.Second, cfg.Stream.HeartbeatTimeout)
	assert.Equal(t, time.Second, cfg.Stream.BackoffBase)
	assert.Equal(t, 30*time.Second, cfg.Stream.BackoffCap)
	assert.Equal(t, 500, cfg.Engine.BufferCapacity)
	assert.Equal(t, 2*time.Second, cfg.Engine.CorrelationWindow)
	assert.Equal(t, "log", cfg.Notifier.Backend)
	assert.Equal(t, 9000, cfg.ClickHouse.Port)
	assert.Equal(t, "signals", cfg.ClickHouse.Database)

	require.Len(t, cfg.Engine.Instruments, 2)
	assert.Equal(t, 60, cfg.Engine.Instruments[0].Timeframe)
	assert.Equal(t, "live", cfg.Engine.Instruments[0].Exchange)
	assert.Equal(t, 300, cfg.Engine.Instruments[1].Timeframe)
}

func TestLoadRejectsMissingStreamURL(t *testing.T) {
	_, err := Load(writeConfig(t, `
engine:
  instruments:
    - symbol: EURUSD
clickhouse:
  host: localhost
`))
	assert.Error(t, err)
}

func TestLoadRejectsEmptyInstruments(t *testing.T) {
	_, err := Load(writeConfig(t, `
stream:
  url: wss://stream.example.com/v1
clickhouse:
  host: localhost
`))
	assert.Error(t, err)
}

func TestLoadRejectsDuplicateInstruments(t *testing.T) {
	_, err := Load(writeConfig(t, `
stream:
  url: wss://stream.example.com/v1
engine:
  instruments:
    - symbol: EURUSD
    - symbol: EURUSD
clickhouse:
  host: localhost
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate instrument")
}

func TestLoadRejectsKafkaBackendWithoutBrokers(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
notifier:
  backend: kafka
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka.brokers")
}

func TestLoadWithEnvOverridesSecrets(t *testing.T) {
	t.Setenv("STREAM_SESSION", "env-session")
	t.Setenv("CLICKHOUSE_PASSWORD", "env-secret")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadWithEnv(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "env-session", cfg.Stream.Session)
	assert.Equal(t, "env-secret", cfg.ClickHouse.Password)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
