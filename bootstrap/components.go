package bootstrap

import (
	"context"
	"fmt"

	"fraudwatch/api"
	"fraudwatch/config"
	"fraudwatch/detect"
	"fraudwatch/latency"
	"fraudwatch/notify"

	"go.uber.org/zap"
)

// InitEngine creates the alert engine from configuration
func InitEngine(cfg *config.Config, sugar *zap.SugaredLogger) (*detect.AlertEngine, error) {
	engine, err := detect.NewAlertEngine(detect.Options{
		BaselineWindow:   cfg.Engine.BaselineWindow,
		AlertLogCapacity: cfg.Engine.AlertLogCapacity,
		MaxBaselineKeys:  cfg.Engine.MaxBaselineKeys,
		Logger:           sugar,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize alert engine: %w", err)
	}

	sugar.Infow("Alert engine initialized",
		"baseline_window", cfg.Engine.BaselineWindow,
		"alert_log_capacity", cfg.Engine.AlertLogCapacity,
		"max_baseline_keys", cfg.Engine.MaxBaselineKeys)
	return engine, nil
}

// InitTracker creates the latency tracker from configuration
func InitTracker(cfg *config.Config) *latency.Tracker {
	return latency.NewTracker(cfg.Latency.WindowSize)
}

// InitPublisher connects the Redis alert publisher. It returns nil when
// Redis is disabled.
func InitPublisher(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*notify.RedisPublisher, error) {
	if !cfg.Redis.Enabled {
		sugar.Info("Redis alert publishing disabled by configuration")
		return nil, nil
	}

	publisher := notify.NewRedisPublisher(notify.RedisOptions{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		Channel:   cfg.Redis.Channel,
		QueueSize: cfg.Redis.QueueSize,

		BreakerFailures: cfg.Redis.BreakerFailures,
		BreakerCooldown: cfg.Redis.BreakerCooldown,
	}, sugar)

	if err := publisher.Ping(ctx); err != nil {
		_ = publisher.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	sugar.Infow("Redis alert publisher connected", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	return publisher, nil
}

// InitAPI creates the dashboard API server
func InitAPI(cfg *config.Config, alerts api.AlertSource, lat api.LatencySource, stats api.StatsSource, sugar *zap.SugaredLogger) (*api.API, error) {
	encoding, err := api.ParseEncoding(cfg.API.WSEncoding)
	if err != nil {
		return nil, fmt.Errorf("invalid api.ws_encoding: %w", err)
	}

	return api.NewAPI(alerts, lat, stats, api.Options{
		Addr:              cfg.Address(),
		BroadcastInterval: cfg.API.BroadcastInterval,
		WSEncoding:        encoding,
		AllowedOrigins:    []string{"*"},
	}, sugar), nil
}
