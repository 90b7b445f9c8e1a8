package api

import (
	"net/http"
	"strconv"
	"time"

	"fraudwatch/core"
	"fraudwatch/latency"
)

// AlertCounts is the body of GET /api/alerts/counts
type AlertCounts struct {
	ByType     map[core.AlertType]uint64 `json:"by_type" msgpack:"by_type"`
	BySeverity map[string]uint64         `json:"by_severity" msgpack:"by_severity"`
	Total      uint64                    `json:"total" msgpack:"total"`
}

// StreamStatus is one detection stream's row count on the dashboard
type StreamStatus struct {
	Name   core.Stream `json:"name" msgpack:"name"`
	Count  uint64      `json:"count" msgpack:"count"`
	Active bool        `json:"active" msgpack:"active"`
}

// DashboardUpdate is the periodic websocket payload
type DashboardUpdate struct {
	Alerts      []core.Alert                    `json:"alerts" msgpack:"alerts"`
	Latency     map[latency.Stage]latency.Stats `json:"latency" msgpack:"latency"`
	Streams     []StreamStatus                  `json:"streams" msgpack:"streams"`
	AlertCounts map[core.AlertType]uint64       `json:"alert_counts" msgpack:"alert_counts"`
	TotalTrades uint64                          `json:"total_trades" msgpack:"total_trades"`
	TotalOrders uint64                          `json:"total_orders" msgpack:"total_orders"`
	TotalAlerts uint64                          `json:"total_alerts" msgpack:"total_alerts"`
	UptimeSecs  uint64                          `json:"uptime_secs" msgpack:"uptime_secs"`
	Prices      map[string]float64              `json:"prices" msgpack:"prices"`
}

// Dashboard assembles a dashboard update from the current state
func (a *API) Dashboard() DashboardUpdate {
	update := DashboardUpdate{
		Alerts:      a.alerts.Recent(a.opts.DashboardAlerts),
		Latency:     a.latency.Snapshots(),
		AlertCounts: a.alerts.Counts(),
		TotalAlerts: a.alerts.Total(),
	}

	var stats RunStats
	if a.stats != nil {
		stats = a.stats.RunStats()
	}
	update.TotalTrades = stats.TotalTrades
	update.TotalOrders = stats.TotalOrders
	update.UptimeSecs = uint64(stats.Uptime / time.Second)
	update.Prices = stats.Prices
	update.Streams = make([]StreamStatus, 0, len(core.Streams))
	for _, s := range core.Streams {
		count := stats.StreamCounts[s]
		update.Streams = append(update.Streams, StreamStatus{Name: s, Count: count, Active: count > 0})
	}
	return update
}

func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	}, http.StatusOK)
}

// getAlerts returns the newest alerts in arrival order.
// limit defaults to 100 and may not exceed 1000.
func (a *API) getAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxAlertLimit {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000", nil, a.logger)
			return
		}
		limit = parsed
	}
	a.respond(w, r, a.alerts.Recent(limit), http.StatusOK)
}

func (a *API) getAlertCounts(w http.ResponseWriter, r *http.Request) {
	bySeverity := make(map[string]uint64)
	for sev, n := range a.alerts.SeverityCounts() {
		bySeverity[sev.String()] = n
	}
	a.respond(w, r, AlertCounts{
		ByType:     a.alerts.Counts(),
		BySeverity: bySeverity,
		Total:      a.alerts.Total(),
	}, http.StatusOK)
}

func (a *API) getLatency(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.latency.Snapshots(), http.StatusOK)
}

func (a *API) getStressReport(w http.ResponseWriter, r *http.Request) {
	report := a.report.Load()
	if report == nil {
		writeError(w, http.StatusNotFound, "No stress report available", nil, a.logger)
		return
	}
	a.respond(w, r, report, http.StatusOK)
}
