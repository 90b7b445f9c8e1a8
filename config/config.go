package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fraudwatch/stress"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Mode selects how the run command presents results
type Mode string

const (
	// ModeHeadless prints alerts and a summary to the console
	ModeHeadless Mode = "headless"
	// ModeWeb also serves the dashboard API and websocket
	ModeWeb Mode = "web"
)

// IsValid checks if the mode is known
func (m Mode) IsValid() bool {
	return m == ModeHeadless || m == ModeWeb
}

// Config holds all configuration for fraudwatch
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
		Format string `mapstructure:"format" validate:"oneof=console json"`
	} `mapstructure:"log"`

	Engine struct {
		BaselineWindow   int `mapstructure:"baseline_window" validate:"gt=0"`
		AlertLogCapacity int `mapstructure:"alert_log_capacity" validate:"gt=0"`
		MaxBaselineKeys  int `mapstructure:"max_baseline_keys" validate:"gt=0"`
	} `mapstructure:"engine"`

	Latency struct {
		WindowSize int `mapstructure:"window_size" validate:"gt=0"`
	} `mapstructure:"latency"`

	Tick struct {
		Interval time.Duration `mapstructure:"interval"`
		// Duration of a run; zero runs until interrupted
		Duration time.Duration `mapstructure:"duration"`
	} `mapstructure:"tick"`

	Generator struct {
		FraudRate float64 `mapstructure:"fraud_rate" validate:"gte=0,lte=1"`
		Seed      uint64  `mapstructure:"seed"`
	} `mapstructure:"generator"`

	Stress struct {
		LevelDuration   time.Duration  `mapstructure:"level_duration"`
		SaturationRatio float64        `mapstructure:"saturation_ratio" validate:"gt=0,lte=1"`
		Levels          []stress.Level `mapstructure:"levels" validate:"dive"`
	} `mapstructure:"stress"`

	API struct {
		Enabled           bool          `mapstructure:"enabled"`
		Host              string        `mapstructure:"host" validate:"required"`
		Port              int           `mapstructure:"port" validate:"min=1,max=65535"`
		BroadcastInterval time.Duration `mapstructure:"broadcast_interval"`
		WSEncoding        string        `mapstructure:"ws_encoding" validate:"oneof=json msgpack"`
	} `mapstructure:"api"`

	Redis struct {
		Enabled   bool   `mapstructure:"enabled"`
		Addr      string `mapstructure:"addr"`
		Password  string `mapstructure:"password"`
		DB        int    `mapstructure:"db" validate:"gte=0"`
		Channel   string `mapstructure:"channel"`
		QueueSize int    `mapstructure:"queue_size" validate:"gt=0"`

		BreakerFailures int           `mapstructure:"breaker_failures" validate:"gt=0"`
		BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" validate:"gt=0"`
	} `mapstructure:"redis"`
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")

	viper.SetDefault("engine.baseline_window", 20)
	viper.SetDefault("engine.alert_log_capacity", 200)
	viper.SetDefault("engine.max_baseline_keys", 10000)

	viper.SetDefault("latency.window_size", 1000)

	viper.SetDefault("tick.interval", 200*time.Millisecond)
	viper.SetDefault("tick.duration", 0)

	viper.SetDefault("generator.fraud_rate", 0.05)
	viper.SetDefault("generator.seed", 0) // 0 = seed from the clock

	viper.SetDefault("stress.level_duration", 10*time.Second)
	viper.SetDefault("stress.saturation_ratio", stress.DefaultSaturationRatio)

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 3000)
	viper.SetDefault("api.broadcast_interval", 500*time.Millisecond)
	viper.SetDefault("api.ws_encoding", "json")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.channel", "fraudwatch:alerts")
	viper.SetDefault("redis.queue_size", 1024)
	viper.SetDefault("redis.breaker_failures", 5)
	viper.SetDefault("redis.breaker_cooldown", 30*time.Second)
}

// loadFromEnv sets up environment variable loading
func loadFromEnv() {
	viper.SetEnvPrefix("FRAUDWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Shorter names for the settings most often overridden in deployments
	_ = viper.BindEnv("log.level", "FRAUDWATCH_LOG_LEVEL")
	_ = viper.BindEnv("api.port", "FRAUDWATCH_API_PORT", "PORT")
	_ = viper.BindEnv("redis.addr", "FRAUDWATCH_REDIS_ADDR", "REDIS_ADDR")
}

// LoadConfig loads configuration from file and environment variables.
// When path is empty, config.yaml is searched in . and ./config and a
// missing file falls back to defaults.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if len(config.Stress.Levels) == 0 {
		config.Stress.Levels = stress.DefaultLevels(config.Stress.LevelDuration)
	}
	for i := range config.Stress.Levels {
		if config.Stress.Levels[i].Duration == 0 {
			config.Stress.Levels[i].Duration = config.Stress.LevelDuration
		}
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express
func Validate(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return err
	}

	if config.Tick.Interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", config.Tick.Interval)
	}
	if config.Tick.Duration < 0 {
		return fmt.Errorf("tick duration cannot be negative, got %s", config.Tick.Duration)
	}
	if config.Stress.LevelDuration <= 0 {
		return fmt.Errorf("stress level duration must be positive, got %s", config.Stress.LevelDuration)
	}
	if err := stress.ValidateLevels(config.Stress.Levels); err != nil {
		return fmt.Errorf("invalid stress levels: %w", err)
	}
	if config.API.Enabled && config.API.BroadcastInterval <= 0 {
		return fmt.Errorf("api broadcast interval must be positive, got %s", config.API.BroadcastInterval)
	}
	if config.Redis.Enabled {
		if config.Redis.Addr == "" {
			return fmt.Errorf("redis addr cannot be empty when redis is enabled")
		}
		if config.Redis.Channel == "" {
			return fmt.Errorf("redis channel cannot be empty when redis is enabled")
		}
	}
	return nil
}

// StressLevels returns the configured ramp with durations overridden when
// levelDuration is positive
func (c *Config) StressLevels(levelDuration time.Duration) []stress.Level {
	levels := make([]stress.Level, len(c.Stress.Levels))
	copy(levels, c.Stress.Levels)
	if levelDuration > 0 {
		for i := range levels {
			levels[i].Duration = levelDuration
		}
	}
	return levels
}

// Address returns the API listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}
