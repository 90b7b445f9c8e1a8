package detect

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"fraudwatch/core"
	"fraudwatch/util/goroutine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newTestEngine(t *testing.T, opts Options) *AlertEngine {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t).Sugar()
	}
	engine, err := NewAlertEngine(opts)
	require.NoError(t, err)
	return engine
}

func TestAlertEngine_VolumeAnomalyAgainstBaseline(t *testing.T) {
	engine := newTestEngine(t, Options{})

	for i := 0; i < 20; i++ {
		_, ok := engine.Evaluate(core.VolumeBaseline{Symbol: "AAPL", TotalVolume: 100}, time.Time{})
		require.False(t, ok)
	}

	alert, ok := engine.Evaluate(core.VolumeBaseline{Symbol: "AAPL", TotalVolume: 250}, time.Time{})
	require.True(t, ok)
	assert.Equal(t, core.AlertVolumeAnomaly, alert.Type)
	assert.Equal(t, core.SeverityMedium, alert.Severity)

	baseline, ok := engine.Baseline(core.StreamVolumeBaseline, "AAPL")
	require.True(t, ok)
	require.Len(t, baseline, 20)
	for _, v := range baseline[:19] {
		assert.Equal(t, 100.0, v)
	}
	assert.Equal(t, 250.0, baseline[19])
}

func TestAlertEngine_VolumeFirstRowSeedsBaseline(t *testing.T) {
	engine := newTestEngine(t, Options{})

	_, ok := engine.Evaluate(core.VolumeBaseline{Symbol: "MSFT", TotalVolume: 1_000_000}, time.Time{})
	assert.False(t, ok, "no history means no comparison")

	baseline, ok := engine.Baseline(core.StreamVolumeBaseline, "MSFT")
	require.True(t, ok)
	assert.Equal(t, []float64{1_000_000}, baseline)
}

func TestAlertEngine_VolumeNonPositiveMean(t *testing.T) {
	engine := newTestEngine(t, Options{})

	engine.Evaluate(core.VolumeBaseline{Symbol: "TSLA", TotalVolume: 0}, time.Time{})
	_, ok := engine.Evaluate(core.VolumeBaseline{Symbol: "TSLA", TotalVolume: 500}, time.Time{})
	assert.False(t, ok)

	baseline, _ := engine.Baseline(core.StreamVolumeBaseline, "TSLA")
	assert.Equal(t, []float64{0, 500}, baseline)
}

func TestAlertEngine_VolumeTierBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		current  int64
		wantOK   bool
		severity core.Severity
	}{
		{"ratio 2.0", 20000, false, 0},
		{"ratio 2.0001", 20001, true, core.SeverityMedium},
		{"ratio 5.0", 50000, true, core.SeverityMedium},
		{"ratio 5.0001", 50001, true, core.SeverityHigh},
		{"ratio 10.0", 100000, true, core.SeverityHigh},
		{"ratio 10.0001", 100001, true, core.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, Options{})
			engine.Evaluate(core.VolumeBaseline{Symbol: "GOOGL", TotalVolume: 10000}, time.Time{})

			alert, ok := engine.Evaluate(core.VolumeBaseline{Symbol: "GOOGL", TotalVolume: tt.current}, time.Time{})
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.severity, alert.Severity)
			}
		})
	}
}

func TestAlertEngine_PriceSpikeTiers(t *testing.T) {
	tests := []struct {
		name     string
		rangeAbs float64
		wantOK   bool
		severity core.Severity
	}{
		{"0.2%", 2, false, 0},
		{"0.3%", 3, true, core.SeverityMedium},
		{"1.0%", 10, true, core.SeverityMedium},
		{"1.1%", 11, true, core.SeverityHigh},
		{"5.0%", 50, true, core.SeverityHigh},
		{"5.1%", 51, true, core.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, Options{})
			row := core.OhlcVolatility{Symbol: "AMZN", Open: 1000, Low: 1000, High: 1000 + tt.rangeAbs, Close: 1000}

			alert, ok := engine.Evaluate(row, time.Time{})
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, core.AlertPriceSpike, alert.Type)
				assert.Equal(t, tt.severity, alert.Severity)
			}
		})
	}
}

func TestAlertEngine_PriceSpikeRequiresPositiveOpen(t *testing.T) {
	engine := newTestEngine(t, Options{})

	_, ok := engine.Evaluate(core.OhlcVolatility{Symbol: "AMZN", Open: 0, Low: 1, High: 500}, time.Time{})
	assert.False(t, ok)

	_, ok = engine.Baseline(core.StreamOhlcVolatility, "AMZN")
	assert.False(t, ok, "undefined ratio is not recorded")
}

func TestAlertEngine_RapidFireTiers(t *testing.T) {
	tests := []struct {
		trades   int64
		wantOK   bool
		severity core.Severity
	}{
		{4, false, 0},
		{5, true, core.SeverityMedium},
		{20, true, core.SeverityMedium},
		{21, true, core.SeverityHigh},
		{50, true, core.SeverityHigh},
		{51, true, core.SeverityCritical},
	}

	engine := newTestEngine(t, Options{})
	for _, tt := range tests {
		alert, ok := engine.Evaluate(core.RapidFireBurst{AccountID: "FRAUD_001", BurstTrades: tt.trades}, time.Time{})
		require.Equal(t, tt.wantOK, ok, "trades=%d", tt.trades)
		if tt.wantOK {
			assert.Equal(t, core.AlertRapidFire, alert.Type)
			assert.Equal(t, tt.severity, alert.Severity, "trades=%d", tt.trades)
		}
	}
}

func TestAlertEngine_WashTrading(t *testing.T) {
	tests := []struct {
		name      string
		buy, sell int64
		buyCount  int64
		sellCount int64
		wantOK    bool
		severity  core.Severity
	}{
		{"no volume", 0, 0, 10, 10, false, 0},
		{"perfectly balanced", 100, 100, 2, 2, true, core.SeverityCritical},
		{"imbalance 0.006", 503, 497, 3, 3, true, core.SeverityCritical},
		{"imbalance 0.02", 51, 49, 2, 2, true, core.SeverityHigh},
		{"imbalance 0.04", 52, 48, 2, 2, true, core.SeverityHigh},
		{"imbalance 0.2", 60, 40, 2, 2, true, core.SeverityMedium},
		{"imbalance 0.3", 65, 35, 2, 2, false, 0},
		{"single buy", 100, 100, 1, 5, false, 0},
		{"single sell", 100, 100, 5, 1, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, Options{})
			row := core.WashScore{
				AccountID:  "WASH_001",
				Symbol:     "AAPL",
				BuyVolume:  tt.buy,
				SellVolume: tt.sell,
				BuyCount:   tt.buyCount,
				SellCount:  tt.sellCount,
			}

			alert, ok := engine.Evaluate(row, time.Time{})
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, core.AlertWashTrading, alert.Type)
				assert.Equal(t, tt.severity, alert.Severity)
			}
		})
	}
}

func TestAlertEngine_WashZeroVolumeLeavesBaselineUntouched(t *testing.T) {
	engine := newTestEngine(t, Options{})

	_, ok := engine.Evaluate(core.WashScore{AccountID: "A", Symbol: "B", BuyCount: 9, SellCount: 9}, time.Time{})
	assert.False(t, ok)

	_, ok = engine.Baseline(core.StreamWashScore, "A/B")
	assert.False(t, ok)
}

func TestAlertEngine_SuspiciousMatch(t *testing.T) {
	tests := []struct {
		name     string
		trade    float64
		order    float64
		wantOK   bool
		severity core.Severity
	}{
		{"exact", 150, 150, true, core.SeverityHigh},
		{"half", 150.5, 150, true, core.SeverityMedium},
		{"below order", 149.5, 150, true, core.SeverityMedium},
		{"one dollar", 151, 150, false, 0},
		{"far", 160, 150, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, Options{})
			row := core.SuspiciousMatch{
				Symbol:     "AAPL",
				AccountID:  "ACC_0001",
				OrderID:    "ORD_1",
				TradePrice: tt.trade,
				OrderPrice: tt.order,
			}

			alert, ok := engine.Evaluate(row, time.Time{})
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, core.AlertSuspiciousMatch, alert.Type)
				assert.Equal(t, tt.severity, alert.Severity)
			}
		})
	}
}

func TestAlertEngine_FrontRunning(t *testing.T) {
	tests := []struct {
		name     string
		side     core.Side
		order    float64
		trade    float64
		gap      int64
		wantOK   bool
		severity core.Severity
	}{
		{"buy fast", core.SideBuy, 100, 101, 50, true, core.SeverityCritical},
		{"buy 100ms", core.SideBuy, 100, 101, 100, true, core.SeverityHigh},
		{"buy 499ms", core.SideBuy, 100, 101, 499, true, core.SeverityHigh},
		{"buy 500ms", core.SideBuy, 100, 101, 500, true, core.SeverityMedium},
		{"buy 1999ms", core.SideBuy, 100, 101, 1999, true, core.SeverityMedium},
		{"buy 2000ms", core.SideBuy, 100, 101, 2000, false, 0},
		{"sell favourable", core.SideSell, 100, 99, 10, true, core.SeverityCritical},
		{"buy unfavourable", core.SideBuy, 100, 99, 10, false, 0},
		{"sell unfavourable", core.SideSell, 100, 101, 10, false, 0},
		{"same instant", core.SideBuy, 100, 101, 0, false, 0},
		{"order after trade", core.SideBuy, 100, 101, -5, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, Options{})
			row := core.AsofMatch{
				Symbol:     "TSLA",
				AccountID:  "FRAUD_002",
				Side:       tt.side,
				OrderID:    "ORD_9",
				OrderPrice: tt.order,
				OrderTs:    1_000_000,
				TradePrice: tt.trade,
				TradeTs:    1_000_000 + tt.gap,
			}

			alert, ok := engine.Evaluate(row, time.Time{})
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, core.AlertFrontRunning, alert.Type)
				assert.Equal(t, tt.severity, alert.Severity)
			}
		})
	}
}

func TestAlertEngine_StampsLatencyAndTimestamp(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := newTestEngine(t, Options{Now: func() time.Time { return now }})

	alert, ok := engine.Evaluate(core.RapidFireBurst{AccountID: "A", BurstTrades: 10}, now.Add(-1500*time.Microsecond))
	require.True(t, ok)
	assert.Equal(t, uint64(1500), alert.LatencyUs)
	assert.Equal(t, now.UnixMilli(), alert.TimestampMs)

	alert, ok = engine.Evaluate(core.RapidFireBurst{AccountID: "A", BurstTrades: 10}, time.Time{})
	require.True(t, ok)
	assert.Zero(t, alert.LatencyUs)

	alert, ok = engine.Evaluate(core.RapidFireBurst{AccountID: "A", BurstTrades: 10}, now.Add(time.Second))
	require.True(t, ok)
	assert.Zero(t, alert.LatencyUs, "origin in the future clamps to zero")
}

func TestAlertEngine_IDsAreMonotonic(t *testing.T) {
	engine := newTestEngine(t, Options{})

	var last uint64
	for i := 0; i < 10; i++ {
		alert, ok := engine.Evaluate(core.RapidFireBurst{AccountID: "A", BurstTrades: 6}, time.Time{})
		require.True(t, ok)
		assert.Greater(t, alert.ID, last)
		last = alert.ID
	}
}

func TestAlertEngine_LogBoundedCountersNot(t *testing.T) {
	engine := newTestEngine(t, Options{AlertLogCapacity: 200})

	for i := 0; i < 250; i++ {
		_, ok := engine.Evaluate(core.RapidFireBurst{AccountID: "A", BurstTrades: 60}, time.Time{})
		require.True(t, ok)
	}

	recent := engine.Recent(0)
	require.Len(t, recent, 200)
	assert.Equal(t, uint64(51), recent[0].ID)
	assert.Equal(t, uint64(250), recent[len(recent)-1].ID)
	assert.Equal(t, uint64(250), engine.Total())
	assert.Equal(t, uint64(250), engine.Counts()[core.AlertRapidFire])
	assert.Equal(t, uint64(250), engine.SeverityCounts()[core.SeverityCritical])
}

func TestAlertEngine_BaselineKeyCapEvictsLeastRecent(t *testing.T) {
	engine := newTestEngine(t, Options{MaxBaselineKeys: 2})

	engine.Evaluate(core.VolumeBaseline{Symbol: "AAPL", TotalVolume: 100}, time.Time{})
	engine.Evaluate(core.VolumeBaseline{Symbol: "MSFT", TotalVolume: 100}, time.Time{})
	engine.Evaluate(core.VolumeBaseline{Symbol: "AAPL", TotalVolume: 100}, time.Time{})
	engine.Evaluate(core.VolumeBaseline{Symbol: "TSLA", TotalVolume: 100}, time.Time{})

	assert.Equal(t, 2, engine.BaselineKeys())
	assert.Equal(t, uint64(1), engine.Evictions())

	_, ok := engine.Baseline(core.StreamVolumeBaseline, "MSFT")
	assert.False(t, ok, "least recently used key is evicted")

	aapl, ok := engine.Baseline(core.StreamVolumeBaseline, "AAPL")
	require.True(t, ok)
	assert.Len(t, aapl, 2)

	// An evicted key restarts with an empty baseline
	_, alerted := engine.Evaluate(core.VolumeBaseline{Symbol: "MSFT", TotalVolume: 10_000}, time.Time{})
	assert.False(t, alerted)
}

func TestAlertEngine_BaselinesAreKeyedPerStream(t *testing.T) {
	engine := newTestEngine(t, Options{})

	engine.Evaluate(core.VolumeBaseline{Symbol: "AAPL", TotalVolume: 100}, time.Time{})
	engine.Evaluate(core.OhlcVolatility{Symbol: "AAPL", Open: 100, High: 100, Low: 100}, time.Time{})

	vol, ok := engine.Baseline(core.StreamVolumeBaseline, "AAPL")
	require.True(t, ok)
	ohlc, ok := engine.Baseline(core.StreamOhlcVolatility, "AAPL")
	require.True(t, ok)

	assert.Equal(t, []float64{100}, vol)
	assert.Equal(t, []float64{0}, ohlc)
	assert.Equal(t, 2, engine.BaselineKeys())
}

type unknownRow struct{}

func (unknownRow) Stream() core.Stream { return core.Stream("unknown") }
func (unknownRow) GroupKey() string    { return "x" }

func TestAlertEngine_UnsupportedRowIsLogged(t *testing.T) {
	obsCore, logs := observer.New(zap.WarnLevel)
	engine := newTestEngine(t, Options{Logger: zap.New(obsCore).Sugar()})

	_, ok := engine.Evaluate(unknownRow{}, time.Time{})
	assert.False(t, ok)
	_, ok = engine.Evaluate(nil, time.Time{})
	assert.False(t, ok)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Unsupported aggregate row", logs.All()[0].Message)
}

func TestAlertEngine_EvaluateAll(t *testing.T) {
	engine := newTestEngine(t, Options{})

	alerts := engine.EvaluateAll([]core.AggregateRow{
		core.RapidFireBurst{AccountID: "A", BurstTrades: 3},
		core.RapidFireBurst{AccountID: "B", BurstTrades: 30},
		core.SuspiciousMatch{AccountID: "C", Symbol: "AAPL", TradePrice: 10, OrderPrice: 10},
	}, time.Time{})

	require.Len(t, alerts, 2)
	assert.Equal(t, core.AlertRapidFire, alerts[0].Type)
	assert.Equal(t, core.AlertSuspiciousMatch, alerts[1].Type)
}

func TestAlertEngine_ConcurrentReadersDuringWrites(t *testing.T) {
	goroutine.AssertNoLeaks(t)
	engine := newTestEngine(t, Options{AlertLogCapacity: 50})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				recent := engine.Recent(10)
				assert.LessOrEqual(t, len(recent), 10)
				engine.Counts()
				engine.Total()
				engine.Baseline(core.StreamVolumeBaseline, "AAPL")
				engine.BaselineKeys()
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		engine.Evaluate(core.VolumeBaseline{Symbol: "AAPL", TotalVolume: int64(100 + i%7*100)}, time.Time{})
		engine.Evaluate(core.RapidFireBurst{AccountID: "A", BurstTrades: int64(i % 60)}, time.Time{})
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, 50, len(engine.Recent(0)))
}

func BenchmarkAlertEngine_Evaluate(b *testing.B) {
	engine, err := NewAlertEngine(Options{Logger: zap.NewNop().Sugar()})
	require.NoError(b, err)

	symbols := []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"}
	rows := make([]core.AggregateRow, 0, 4*len(symbols))
	for i, sym := range symbols {
		rows = append(rows,
			core.VolumeBaseline{Symbol: sym, TotalVolume: int64(100 + i), TradeCount: 10, AvgPrice: 150},
			core.OhlcVolatility{Symbol: sym, Open: 150, High: 151, Low: 149, Close: 150, Volume: 100, PriceRange: 2},
			core.RapidFireBurst{AccountID: fmt.Sprintf("ACCT-%03d", i), BurstTrades: 3, BurstVolume: 30},
			core.WashScore{AccountID: fmt.Sprintf("ACCT-%03d", i), Symbol: sym, BuyVolume: 100, SellVolume: 20, BuyCount: 5, SellCount: 1},
		)
	}
	origin := time.Now()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Evaluate(rows[i%len(rows)], origin)
	}
	b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "rows/s")
}
