package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 20, cfg.Engine.BaselineWindow)
	assert.Equal(t, 200, cfg.Engine.AlertLogCapacity)
	assert.Equal(t, 10000, cfg.Engine.MaxBaselineKeys)
	assert.Equal(t, 1000, cfg.Latency.WindowSize)
	assert.Equal(t, 200*time.Millisecond, cfg.Tick.Interval)
	assert.Zero(t, cfg.Tick.Duration)
	assert.Equal(t, 0.05, cfg.Generator.FraudRate)
	assert.Equal(t, 10*time.Second, cfg.Stress.LevelDuration)
	assert.Equal(t, 0.9, cfg.Stress.SaturationRatio)
	require.Len(t, cfg.Stress.Levels, 7)
	assert.Equal(t, uint64(100), cfg.Stress.Levels[0].TargetTPS)
	assert.Equal(t, 10*time.Second, cfg.Stress.Levels[0].Duration)
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, "0.0.0.0:3000", cfg.Address())
	assert.Equal(t, 500*time.Millisecond, cfg.API.BroadcastInterval)
	assert.Equal(t, "json", cfg.API.WSEncoding)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "fraudwatch:alerts", cfg.Redis.Channel)
	assert.Equal(t, 1024, cfg.Redis.QueueSize)
	assert.Equal(t, 5, cfg.Redis.BreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.Redis.BreakerCooldown)
}

func TestLoadConfig_File(t *testing.T) {
	viper.Reset()
	path := writeConfig(t, `
log:
  level: debug
engine:
  max_baseline_keys: 50
tick:
  interval: 100ms
  duration: 30s
generator:
  fraud_rate: 0.2
  seed: 42
stress:
  level_duration: 2s
  levels:
    - target_tps: 500
      batch_size: 50
    - target_tps: 5000
      batch_size: 100
      duration: 5s
api:
  enabled: true
  port: 8088
  ws_encoding: msgpack
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 50, cfg.Engine.MaxBaselineKeys)
	assert.Equal(t, 100*time.Millisecond, cfg.Tick.Interval)
	assert.Equal(t, 30*time.Second, cfg.Tick.Duration)
	assert.Equal(t, 0.2, cfg.Generator.FraudRate)
	assert.Equal(t, uint64(42), cfg.Generator.Seed)
	require.Len(t, cfg.Stress.Levels, 2)
	assert.Equal(t, 2*time.Second, cfg.Stress.Levels[0].Duration, "level inherits level_duration")
	assert.Equal(t, 5*time.Second, cfg.Stress.Levels[1].Duration)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, 8088, cfg.API.Port)
	assert.Equal(t, "msgpack", cfg.API.WSEncoding)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("FRAUDWATCH_API_PORT", "4000")
	t.Setenv("FRAUDWATCH_GENERATOR_FRAUD_RATE", "0.5")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.API.Port)
	assert.Equal(t, 0.5, cfg.Generator.FraudRate)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	viper.Reset()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"log level", "log:\n  level: verbose\n"},
		{"fraud rate", "generator:\n  fraud_rate: 1.5\n"},
		{"ws encoding", "api:\n  ws_encoding: xml\n"},
		{"port", "api:\n  port: 70000\n"},
		{"tick interval", "tick:\n  interval: 0s\n"},
		{"level target", "stress:\n  levels:\n    - target_tps: 0\n      batch_size: 10\n"},
		{"saturation ratio", "stress:\n  saturation_ratio: 1.5\n"},
		{"redis channel", "redis:\n  enabled: true\n  channel: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestConfig_StressLevelsOverride(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	levels := cfg.StressLevels(time.Second)
	require.Len(t, levels, 7)
	for _, l := range levels {
		assert.Equal(t, time.Second, l.Duration)
	}
	assert.Equal(t, 10*time.Second, cfg.Stress.Levels[0].Duration, "config is not mutated")

	assert.Equal(t, cfg.Stress.Levels, cfg.StressLevels(0))
}

func TestMode_IsValid(t *testing.T) {
	assert.True(t, ModeHeadless.IsValid())
	assert.True(t, ModeWeb.IsValid())
	assert.False(t, Mode("tui").IsValid())
}
