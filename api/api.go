// Package api serves the dashboard: JSON/msgpack read endpoints over the
// alert engine, latency tracker and last stress report, plus a websocket
// feed of periodic dashboard updates.
package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fraudwatch/core"
	"fraudwatch/latency"
	"fraudwatch/stress"
	"fraudwatch/util/goroutine"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// AlertSource is the read side of the alert engine
type AlertSource interface {
	Recent(limit int) []core.Alert
	Counts() map[core.AlertType]uint64
	SeverityCounts() map[core.Severity]uint64
	Total() uint64
}

// LatencySource is the read side of the latency tracker
type LatencySource interface {
	Snapshots() map[latency.Stage]latency.Stats
}

// RunStats are the tick loop counters shown on the dashboard
type RunStats struct {
	TotalTrades  uint64                 `json:"total_trades" msgpack:"total_trades"`
	TotalOrders  uint64                 `json:"total_orders" msgpack:"total_orders"`
	StreamCounts map[core.Stream]uint64 `json:"stream_counts" msgpack:"stream_counts"`
	Prices       map[string]float64     `json:"prices" msgpack:"prices"`
	Uptime       time.Duration          `json:"-" msgpack:"-"`
}

// StatsSource reports tick loop counters. It may be nil.
type StatsSource interface {
	RunStats() RunStats
}

// Options configures the API server. Zero values select defaults.
type Options struct {
	Addr              string
	BroadcastInterval time.Duration
	WSEncoding        Encoding
	// AllowedOrigins lists CORS origins; "*" allows any
	AllowedOrigins []string
	// DashboardAlerts is how many recent alerts each dashboard update carries
	DashboardAlerts int
}

const (
	defaultBroadcastInterval = 500 * time.Millisecond
	defaultDashboardAlerts   = 50
	defaultAlertLimit        = 100
	maxAlertLimit            = 1000
)

// API holds the API server
type API struct {
	router  *mux.Router
	server  *http.Server
	hub     *Hub
	alerts  AlertSource
	latency LatencySource
	stats   StatsSource
	report  atomic.Pointer[stress.Report]
	opts    Options
	logger  *zap.SugaredLogger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
}

// NewAPI creates a new API server
func NewAPI(alerts AlertSource, lat LatencySource, stats StatsSource, opts Options, logger *zap.SugaredLogger) *API {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.BroadcastInterval <= 0 {
		opts.BroadcastInterval = defaultBroadcastInterval
	}
	if opts.WSEncoding == "" {
		opts.WSEncoding = EncodingJSON
	}
	if opts.DashboardAlerts <= 0 {
		opts.DashboardAlerts = defaultDashboardAlerts
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &API{
		router:  mux.NewRouter(),
		alerts:  alerts,
		latency: lat,
		stats:   stats,
		opts:    opts,
		logger:  logger,
		cancel:  cancel,
	}
	a.hub = NewHub(ctx, opts.WSEncoding, logger)
	a.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.setupRoutes()
	return a
}

// setupRoutes sets up the API routes
func (a *API) setupRoutes() {
	a.router.Use(a.corsMiddleware)
	a.router.HandleFunc("/health", a.healthCheck).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler())
	a.router.HandleFunc("/api/alerts", a.getAlerts).Methods("GET")
	a.router.HandleFunc("/api/alerts/counts", a.getAlertCounts).Methods("GET")
	a.router.HandleFunc("/api/latency", a.getLatency).Methods("GET")
	a.router.HandleFunc("/api/stress", a.getStressReport).Methods("GET")
	a.router.HandleFunc("/ws", a.serveWs).Methods("GET")
}

// Handler returns the HTTP handler serving every route
func (a *API) Handler() http.Handler {
	return a.router
}

// Hub returns the websocket hub
func (a *API) Hub() *Hub {
	return a.hub
}

// SetStressReport publishes the report served by /api/stress
func (a *API) SetStressReport(r *stress.Report) {
	a.report.Store(r)
}

// startWorkers runs the websocket hub and the dashboard broadcaster
func (a *API) startWorkers() {
	a.startOnce.Do(func() {
		goroutine.Go(&a.wg, "websocket-hub", a.logger, a.hub.Start)
		goroutine.Go(&a.wg, "dashboard-broadcaster", a.logger, a.broadcastLoop)
	})
}

// Start starts the API server. It blocks until the server stops and returns
// http.ErrServerClosed after Stop.
func (a *API) Start() error {
	a.startWorkers()
	a.logger.Infow("API server listening", "addr", a.opts.Addr, "ws_encoding", a.opts.WSEncoding)
	return a.server.ListenAndServe()
}

// Stop stops the API server, the broadcaster and the websocket hub
func (a *API) Stop(ctx context.Context) error {
	a.cancel()
	err := a.server.Shutdown(ctx)
	a.hub.Stop()
	a.wg.Wait()
	return err
}

func (a *API) broadcastLoop() {
	ticker := time.NewTicker(a.opts.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.hub.ctx.Done():
			return
		case <-ticker.C:
			if a.hub.ClientCount() == 0 {
				continue
			}
			if err := a.hub.BroadcastMessage(MessageDashboard, a.Dashboard()); err != nil {
				a.logger.Warnw("Failed to broadcast dashboard update", "error", err)
			}
		}
	}
}

// corsMiddleware adds CORS headers
func (a *API) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, allowed := range a.opts.AllowedOrigins {
			if allowed == "*" || origin == allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeError writes an error response to the client and logs it
func writeError(w http.ResponseWriter, statusCode int, message string, err error, logger *zap.SugaredLogger) {
	if logger != nil {
		if err != nil {
			logger.Warnw(message, "error", err, "status_code", statusCode)
		} else {
			logger.Debugw(message, "status_code", statusCode)
		}
	}
	http.Error(w, message, statusCode)
}
