package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fraudwatch/api"
	"fraudwatch/config"
	"fraudwatch/core"
	"fraudwatch/detect"
	"fraudwatch/generator"
	"fraudwatch/latency"
	"fraudwatch/metrics"
	"fraudwatch/notify"
	"fraudwatch/pipeline"
	"fraudwatch/util/goroutine"

	"go.uber.org/zap"
)

// App is a running fraudwatch instance: the tick loop driving generator,
// pipeline and alert engine, plus the optional API server and publisher.
type App struct {
	Config *config.Config
	Mode   config.Mode
	Sugar  *zap.SugaredLogger

	Engine    *detect.AlertEngine
	Tracker   *latency.Tracker
	Pipeline  *pipeline.Memory
	Generator *generator.Generator
	APIServer *api.API
	Publisher *notify.RedisPublisher

	// AlertOut receives one line per alert in headless mode. Nil disables it.
	AlertOut io.Writer

	mu           sync.Mutex
	totalTrades  uint64
	totalOrders  uint64
	streamCounts map[core.Stream]uint64
	prices       map[string]float64
	started      time.Time

	now          func() time.Time
	cancel       context.CancelFunc
	done         chan struct{}
	serviceWg    sync.WaitGroup
	shutdownOnce sync.Once
}

// NewApp creates the application components from configuration
func NewApp(cfg *config.Config, mode config.Mode, sugar *zap.SugaredLogger) (*App, error) {
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	engine, err := InitEngine(cfg, sugar)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:       cfg,
		Mode:         mode,
		Sugar:        sugar,
		Engine:       engine,
		Tracker:      InitTracker(cfg),
		Pipeline:     pipeline.NewMemory(sugar),
		Generator:    generator.New(cfg.Generator.FraudRate, cfg.Generator.Seed),
		AlertOut:     os.Stdout,
		streamCounts: make(map[core.Stream]uint64, len(core.Streams)),
		now:          time.Now,
		done:         make(chan struct{}),
	}

	if mode == config.ModeWeb || cfg.API.Enabled {
		server, err := InitAPI(cfg, app.Engine, app.Tracker, app, sugar)
		if err != nil {
			return nil, err
		}
		app.APIServer = server
	}

	return app, nil
}

// Start connects optional services and launches the tick loop
func (a *App) Start(ctx context.Context) error {
	publisher, err := InitPublisher(ctx, a.Config, a.Sugar)
	if err != nil {
		return err
	}
	if publisher != nil {
		a.Publisher = publisher
		a.Publisher.Start()
	}

	if a.APIServer != nil {
		goroutine.Go(&a.serviceWg, "api-server", a.Sugar, func() {
			if err := a.APIServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Sugar.Errorw("API server failed", "error", err)
			}
		})
	}

	var loopCtx context.Context
	if a.Config.Tick.Duration > 0 {
		loopCtx, a.cancel = context.WithTimeout(ctx, a.Config.Tick.Duration)
	} else {
		loopCtx, a.cancel = context.WithCancel(ctx)
	}

	a.mu.Lock()
	a.started = a.now()
	a.mu.Unlock()

	a.Sugar.Infow("fraudwatch started",
		"mode", a.Mode,
		"fraud_rate", a.Generator.FraudRate(),
		"tick_interval", a.Config.Tick.Interval,
		"duration", a.Config.Tick.Duration)

	goroutine.Go(&a.serviceWg, "tick-loop", a.Sugar, func() {
		defer close(a.done)
		a.runTicks(loopCtx)
	})
	return nil
}

func (a *App) runTicks(ctx context.Context) {
	ticker := time.NewTicker(a.Config.Tick.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Tick(ctx); err != nil {
				if errors.Is(err, pipeline.ErrClosed) || ctx.Err() != nil {
					return
				}
				metrics.PipelineErrors.WithLabelValues("tick").Inc()
				a.Sugar.Warnw("Tick failed", "error", err)
			}
		}
	}
}

// Tick runs one generate, push, poll and evaluate cycle and returns the
// alerts it raised
func (a *App) Tick(ctx context.Context) ([]core.Alert, error) {
	origin := a.now()
	batch := a.Generator.Cycle(origin.UnixMilli())

	pushStart := time.Now()
	if err := a.Pipeline.Push(ctx, batch); err != nil {
		return nil, fmt.Errorf("push failed: %w", err)
	}
	a.Tracker.PushDone(pushStart)

	out, err := a.Pipeline.Poll(ctx)
	if err != nil {
		return nil, fmt.Errorf("poll failed: %w", err)
	}
	a.Tracker.Polled()

	a.recordTick(batch, out.Rows, a.Generator.Prices())

	var alerts []core.Alert
	for _, row := range out.Rows {
		alert, ok := a.Engine.Evaluate(row, origin)
		if !ok {
			continue
		}
		a.Tracker.Record(latency.StageAlert, alert.LatencyUs)
		a.dispatch(alert)
		alerts = append(alerts, alert)
	}

	metrics.TickDuration.Observe(time.Since(origin).Seconds())
	return alerts, nil
}

func (a *App) recordTick(batch core.Batch, rows []core.AggregateRow, prices map[string]float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prices = prices
	a.totalTrades += uint64(len(batch.Trades))
	a.totalOrders += uint64(len(batch.Orders))
	for _, row := range rows {
		a.streamCounts[row.Stream()]++
	}
}

func (a *App) dispatch(alert core.Alert) {
	if a.Publisher != nil {
		a.Publisher.Publish(alert)
	}
	if a.Mode == config.ModeHeadless && a.AlertOut != nil {
		fmt.Fprintf(a.AlertOut, "  ALERT | %-8s | %-15s | %s | %dus\n",
			alert.Severity, alert.Type, alert.Description, alert.LatencyUs)
	}
}

// RunStats reports the tick loop counters for the dashboard
func (a *App) RunStats() api.RunStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	counts := make(map[core.Stream]uint64, len(a.streamCounts))
	for k, v := range a.streamCounts {
		counts[k] = v
	}
	prices := make(map[string]float64, len(a.prices))
	for k, v := range a.prices {
		prices[k] = v
	}
	var uptime time.Duration
	if !a.started.IsZero() {
		uptime = a.now().Sub(a.started)
	}
	return api.RunStats{
		TotalTrades:  a.totalTrades,
		TotalOrders:  a.totalOrders,
		StreamCounts: counts,
		Prices:       prices,
		Uptime:       uptime,
	}
}

// Done is closed when the tick loop has stopped
func (a *App) Done() <-chan struct{} {
	return a.done
}

// WaitForShutdown blocks until a shutdown signal is received or the tick
// loop finishes its configured duration
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		a.Sugar.Infow("Shutdown signal received", "signal", sig.String())
	case <-a.done:
		a.Sugar.Info("Run duration elapsed")
	}
}

// Shutdown stops the tick loop and every started service. It is safe to
// call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(a.shutdown)
}

func (a *App) shutdown() {
	a.Sugar.Info("Shutting down...")

	if a.cancel != nil {
		a.cancel()
	}

	if a.APIServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop API server", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		a.serviceWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		a.Sugar.Warn("Service goroutine shutdown timed out")
	}

	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Sugar.Errorw("Failed to close redis publisher", "error", err)
		}
	}

	if err := a.Pipeline.Close(); err != nil && !errors.Is(err, pipeline.ErrClosed) {
		a.Sugar.Errorw("Failed to close pipeline", "error", err)
	}

	a.Sugar.Infow("Shutdown complete", "total_alerts", a.Engine.Total())
}
