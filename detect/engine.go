package detect

import (
	"fmt"
	"math"
	"sync"
	"time"

	"fraudwatch/core"
	"fraudwatch/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// DefaultMaxBaselineKeys caps the number of (stream, key) baselines held
const DefaultMaxBaselineKeys = 10000

// Options configures an AlertEngine. Zero values select defaults.
type Options struct {
	BaselineWindow   int
	AlertLogCapacity int
	MaxBaselineKeys  int
	// Now overrides the wall clock used for alert timestamps and latency
	Now    func() time.Time
	Logger *zap.SugaredLogger
}

type baselineKey struct {
	stream core.Stream
	key    string
}

// verdict is what a classifier decided about one row
type verdict struct {
	alertType   core.AlertType
	severity    core.Severity
	description string
}

// AlertEngine turns aggregate rows into classified alerts.
// Evaluate is expected to be called from a single writer; every reader
// method may be called concurrently and returns copies.
type AlertEngine struct {
	mu        sync.RWMutex
	baselines *lru.Cache[baselineKey, *RollingBaseline]
	window    int
	log       *AlertLog
	nextID    uint64
	evictions uint64

	now    func() time.Time
	logger *zap.SugaredLogger
}

// NewAlertEngine creates an alert engine
func NewAlertEngine(opts Options) (*AlertEngine, error) {
	if opts.BaselineWindow <= 0 {
		opts.BaselineWindow = DefaultBaselineWindow
	}
	if opts.AlertLogCapacity <= 0 {
		opts.AlertLogCapacity = DefaultAlertLogCapacity
	}
	if opts.MaxBaselineKeys <= 0 {
		opts.MaxBaselineKeys = DefaultMaxBaselineKeys
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	e := &AlertEngine{
		window: opts.BaselineWindow,
		log:    NewAlertLog(opts.AlertLogCapacity),
		now:    opts.Now,
		logger: opts.Logger,
	}

	cache, err := lru.NewWithEvict[baselineKey, *RollingBaseline](opts.MaxBaselineKeys, func(baselineKey, *RollingBaseline) {
		// Runs inside Add, which is only called with e.mu held
		e.evictions++
		metrics.BaselineEvictions.Inc()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create baseline cache: %w", err)
	}
	e.baselines = cache

	return e, nil
}

// Evaluate classifies one aggregate row. It returns the alert and true when
// the row crosses a severity tier. origin is when the data behind the row was
// generated; the alert's latency is measured from it (zero origin gives zero
// latency).
func (e *AlertEngine) Evaluate(row core.AggregateRow, origin time.Time) (core.Alert, bool) {
	if row == nil {
		return core.Alert{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		v  verdict
		ok bool
	)
	switch r := row.(type) {
	case core.VolumeBaseline:
		v, ok = e.evaluateVolume(r)
	case core.OhlcVolatility:
		v, ok = e.evaluateOhlc(r)
	case core.RapidFireBurst:
		v, ok = e.evaluateRapidFire(r)
	case core.WashScore:
		v, ok = e.evaluateWash(r)
	case core.SuspiciousMatch:
		v, ok = e.evaluateMatch(r)
	case core.AsofMatch:
		v, ok = e.evaluateAsof(r)
	default:
		e.logger.Warnw("Unsupported aggregate row", "type", fmt.Sprintf("%T", row))
		return core.Alert{}, false
	}
	metrics.RowsEvaluated.WithLabelValues(row.Stream().String()).Inc()
	metrics.BaselineKeys.Set(float64(e.baselines.Len()))

	if !ok {
		return core.Alert{}, false
	}

	now := e.now()
	e.nextID++
	alert := core.Alert{
		ID:          e.nextID,
		Type:        v.alertType,
		Severity:    v.severity,
		Description: v.description,
		LatencyUs:   latencySince(origin, now),
		TimestampMs: now.UnixMilli(),
	}
	e.log.Append(alert)
	metrics.AlertsGenerated.WithLabelValues(alert.Type.String(), alert.Severity.String()).Inc()

	e.logger.Debugw("Alert raised",
		"id", alert.ID,
		"type", alert.Type,
		"severity", alert.Severity.String(),
		"description", alert.Description)

	return alert, true
}

// EvaluateAll evaluates rows in order and returns the alerts they raised
func (e *AlertEngine) EvaluateAll(rows []core.AggregateRow, origin time.Time) []core.Alert {
	var alerts []core.Alert
	for _, row := range rows {
		if alert, ok := e.Evaluate(row, origin); ok {
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

func latencySince(origin, now time.Time) uint64 {
	if origin.IsZero() || now.Before(origin) {
		return 0
	}
	return uint64(now.Sub(origin).Microseconds())
}

// baseline returns the baseline for (stream, key), creating it if needed.
// Callers must hold e.mu.
func (e *AlertEngine) baseline(stream core.Stream, key string) *RollingBaseline {
	k := baselineKey{stream: stream, key: key}
	if b, ok := e.baselines.Get(k); ok {
		return b
	}
	b := NewRollingBaseline(e.window)
	e.baselines.Add(k, b)
	return b
}

func (e *AlertEngine) evaluateVolume(r core.VolumeBaseline) (verdict, bool) {
	b := e.baseline(r.Stream(), r.GroupKey())
	mean, hasHistory := b.Mean()
	current := float64(r.TotalVolume)
	b.Push(current)

	if !hasHistory || mean <= 0 {
		return verdict{}, false
	}
	ratio := current / mean
	sev, ok := VolumeTiers.Classify(ratio)
	if !ok {
		return verdict{}, false
	}
	return verdict{
		alertType:   core.AlertVolumeAnomaly,
		severity:    sev,
		description: fmt.Sprintf("%s vol=%d avg=%.0f (%.1fx)", r.Symbol, r.TotalVolume, mean, ratio),
	}, true
}

func (e *AlertEngine) evaluateOhlc(r core.OhlcVolatility) (verdict, bool) {
	if r.Open <= 0 {
		return verdict{}, false
	}
	rangePct := (r.High - r.Low) / r.Open
	e.baseline(r.Stream(), r.GroupKey()).Push(rangePct)

	sev, ok := PriceRangeTiers.Classify(rangePct)
	if !ok {
		return verdict{}, false
	}
	return verdict{
		alertType: core.AlertPriceSpike,
		severity:  sev,
		description: fmt.Sprintf("%s range=%.2f%% O=%.2f H=%.2f L=%.2f",
			r.Symbol, rangePct*100, r.Open, r.High, r.Low),
	}, true
}

func (e *AlertEngine) evaluateRapidFire(r core.RapidFireBurst) (verdict, bool) {
	count := float64(r.BurstTrades)
	e.baseline(r.Stream(), r.GroupKey()).Push(count)

	sev, ok := RapidFireTiers.Classify(count)
	if !ok {
		return verdict{}, false
	}
	return verdict{
		alertType:   core.AlertRapidFire,
		severity:    sev,
		description: fmt.Sprintf("%s %d trades vol=%d", r.AccountID, r.BurstTrades, r.BurstVolume),
	}, true
}

func (e *AlertEngine) evaluateWash(r core.WashScore) (verdict, bool) {
	total := r.BuyVolume + r.SellVolume
	if total <= 0 {
		return verdict{}, false
	}
	imbalance := math.Abs(float64(r.BuyVolume-r.SellVolume)) / float64(total)
	e.baseline(r.Stream(), r.GroupKey()).Push(imbalance)

	if r.BuyCount < WashMinSideCount || r.SellCount < WashMinSideCount {
		return verdict{}, false
	}
	sev, ok := WashTiers.Classify(imbalance)
	if !ok {
		return verdict{}, false
	}
	return verdict{
		alertType: core.AlertWashTrading,
		severity:  sev,
		description: fmt.Sprintf("%s %s imb=%.3f buy=%d sell=%d",
			r.AccountID, r.Symbol, imbalance, r.BuyVolume, r.SellVolume),
	}, true
}

func (e *AlertEngine) evaluateMatch(r core.SuspiciousMatch) (verdict, bool) {
	diff := math.Abs(r.TradePrice - r.OrderPrice)
	e.baseline(r.Stream(), r.GroupKey()).Push(diff)

	sev, ok := MatchTiers.Classify(diff)
	if !ok {
		return verdict{}, false
	}
	return verdict{
		alertType:   core.AlertSuspiciousMatch,
		severity:    sev,
		description: fmt.Sprintf("%s %s order=%s diff=%.4f", r.AccountID, r.Symbol, r.OrderID, diff),
	}, true
}

func (e *AlertEngine) evaluateAsof(r core.AsofMatch) (verdict, bool) {
	gap := r.TradeTs - r.OrderTs
	if gap <= 0 {
		return verdict{}, false
	}
	e.baseline(r.Stream(), r.GroupKey()).Push(float64(gap))

	if !movedInFavour(r) {
		return verdict{}, false
	}
	sev, ok := FrontRunTiers.Classify(float64(gap))
	if !ok {
		return verdict{}, false
	}
	return verdict{
		alertType: core.AlertFrontRunning,
		severity:  sev,
		description: fmt.Sprintf("%s %s order=%s %s@%.2f trade@%.2f gap=%dms",
			r.AccountID, r.Symbol, r.OrderID, r.Side, r.OrderPrice, r.TradePrice, gap),
	}, true
}

// movedInFavour reports whether the trade price moved past the order price
// in the direction that profits the order
func movedInFavour(r core.AsofMatch) bool {
	switch r.Side {
	case core.SideBuy:
		return r.TradePrice > r.OrderPrice
	case core.SideSell:
		return r.TradePrice < r.OrderPrice
	default:
		return false
	}
}

// Recent returns up to limit of the newest alerts in arrival order
func (e *AlertEngine) Recent(limit int) []core.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.Recent(limit)
}

// Counts returns a copy of the per-type alert counters
func (e *AlertEngine) Counts() map[core.AlertType]uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.Counts()
}

// SeverityCounts returns a copy of the per-severity alert counters
func (e *AlertEngine) SeverityCounts() map[core.Severity]uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.SeverityCounts()
}

// Total returns the number of alerts ever raised
func (e *AlertEngine) Total() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.Total()
}

// Baseline returns a copy of the values held for (stream, key), oldest first
func (e *AlertEngine) Baseline(stream core.Stream, key string) ([]float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.baselines.Peek(baselineKey{stream: stream, key: key})
	if !ok {
		return nil, false
	}
	return b.Values(), true
}

// BaselineKeys returns the number of baselines currently held
func (e *AlertEngine) BaselineKeys() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.baselines.Len()
}

// Evictions returns how many baselines the key cap has evicted
func (e *AlertEngine) Evictions() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.evictions
}
