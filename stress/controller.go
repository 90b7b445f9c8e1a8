package stress

import (
	"context"
	"slices"
	"strconv"
	"time"

	"fraudwatch/core"
	"fraudwatch/detect"
	"fraudwatch/latency"
	"fraudwatch/metrics"
	"fraudwatch/pipeline"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Source produces fraud-free load batches
type Source interface {
	StressBatch(ts int64, n int) core.Batch
}

// LevelResult is the measured outcome of one level
type LevelResult struct {
	Level      int           `json:"level" yaml:"level"`
	Target     uint64        `json:"target_tps" yaml:"target_tps"`
	BatchSize  int           `json:"batch_size" yaml:"batch_size"`
	Achieved   float64       `json:"achieved_tps" yaml:"achieved_tps"`
	Trades     uint64        `json:"trades" yaml:"trades"`
	Orders     uint64        `json:"orders" yaml:"orders"`
	Pushed     uint64        `json:"pushed" yaml:"pushed"`
	Processed  uint64        `json:"processed" yaml:"processed"`
	Rows       uint64        `json:"rows" yaml:"rows"`
	// StreamRows counts polled rows per detection stream
	StreamRows map[core.Stream]uint64 `json:"stream_rows,omitempty" yaml:"stream_rows,omitempty"`
	Alerts     uint64        `json:"alerts" yaml:"alerts"`
	PushErrors uint64        `json:"push_errors" yaml:"push_errors"`
	PollErrors uint64        `json:"poll_errors" yaml:"poll_errors"`
	Push       latency.Stats `json:"push" yaml:"push"`
	Processing latency.Stats `json:"processing" yaml:"processing"`
	Alert      latency.Stats `json:"alert" yaml:"alert"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
	Saturated  bool          `json:"saturated" yaml:"saturated"`
}

// Options configures a Controller
type Options struct {
	SaturationRatio float64
	// Engine, when set, evaluates every row polled during the ramp
	Engine *detect.AlertEngine
	Logger *zap.SugaredLogger
	// OnLevelStart and OnLevelDone are progress hooks, called from Run
	OnLevelStart func(index int, total int, level Level)
	OnLevelDone  func(result LevelResult)
}

// Controller runs load ramps against a pipeline. It is the single writer
// of the tracker and engine while a ramp is running.
type Controller struct {
	pipeline pipeline.Pipeline
	source   Source
	tracker  *latency.Tracker
	engine   *detect.AlertEngine
	ratio    float64
	logger   *zap.SugaredLogger

	onLevelStart func(int, int, Level)
	onLevelDone  func(LevelResult)
}

// NewController creates a stress controller
func NewController(p pipeline.Pipeline, source Source, tracker *latency.Tracker, opts Options) *Controller {
	if opts.SaturationRatio <= 0 || opts.SaturationRatio > 1 {
		opts.SaturationRatio = DefaultSaturationRatio
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Controller{
		pipeline:     p,
		source:       source,
		tracker:      tracker,
		engine:       opts.Engine,
		ratio:        opts.SaturationRatio,
		logger:       opts.Logger,
		onLevelStart: opts.OnLevelStart,
		onLevelDone:  opts.OnLevelDone,
	}
}

// Run executes the levels in ascending target order and returns one result
// per completed level. ctx is only checked between levels: a level that has
// started always finishes, and cancellation returns the results so far.
func (c *Controller) Run(ctx context.Context, levels []Level) ([]LevelResult, Summary) {
	ordered := slices.Clone(levels)
	slices.SortStableFunc(ordered, func(a, b Level) int {
		switch {
		case a.TargetTPS < b.TargetTPS:
			return -1
		case a.TargetTPS > b.TargetTPS:
			return 1
		default:
			return 0
		}
	})

	results := make([]LevelResult, 0, len(ordered))
	for i, lvl := range ordered {
		if err := ctx.Err(); err != nil {
			c.logger.Warnw("Stress run cancelled",
				"completed_levels", len(results),
				"total_levels", len(ordered),
				"error", err)
			break
		}
		if c.onLevelStart != nil {
			c.onLevelStart(i, len(ordered), lvl)
		}

		result := c.runLevel(ctx, i, lvl)
		results = append(results, result)

		c.logger.Infow("Stress level complete",
			"level", i+1,
			"target_tps", result.Target,
			"achieved_tps", int64(result.Achieved),
			"processed", result.Processed,
			"saturated", result.Saturated,
			"push_p99_us", result.Push.P99)
		if c.onLevelDone != nil {
			c.onLevelDone(result)
		}
	}

	return results, Summarize(results)
}

func (c *Controller) runLevel(parent context.Context, index int, lvl Level) LevelResult {
	c.tracker.Reset(latency.StagePush, latency.StageProcessing, latency.StageAlert)

	// Pipeline calls use a context that survives cancellation of the run so
	// the level in progress can finish; pacing stops at the level deadline.
	base := context.WithoutCancel(parent)
	paced, cancel := context.WithTimeout(base, lvl.Duration)
	defer cancel()

	batchSize := max(lvl.BatchSize, 1)
	limiter := rate.NewLimiter(rate.Limit(lvl.TargetTPS), batchSize)
	result := LevelResult{
		Level:      index,
		Target:     lvl.TargetTPS,
		BatchSize:  batchSize,
		StreamRows: make(map[core.Stream]uint64, len(core.Streams)),
	}

	eventTs := time.Now().UnixMilli()
	start := time.Now()
	for {
		// WaitN fails fast when the wait would overrun the level deadline
		if err := limiter.WaitN(paced, batchSize); err != nil {
			break
		}

		origin := time.Now()
		batch := c.source.StressBatch(eventTs, batchSize)
		eventTs = batch.Watermark + 1

		pushStart := time.Now()
		if err := c.pipeline.Push(base, batch); err != nil {
			result.PushErrors++
			metrics.PipelineErrors.WithLabelValues("push").Inc()
			c.logger.Warnw("Stress push failed", "level", index+1, "error", err)
			continue
		}
		c.tracker.PushDone(pushStart)
		result.Trades += uint64(len(batch.Trades))
		result.Orders += uint64(len(batch.Orders))
		result.Pushed += uint64(batch.Len())

		c.poll(base, &result, origin)
	}
	// the level lasts until its deadline even when the last batch was
	// released earlier
	<-paced.Done()
	c.poll(base, &result, time.Now())

	result.Elapsed = time.Since(start)
	if secs := result.Elapsed.Seconds(); secs > 0 {
		result.Achieved = float64(result.Processed) / secs
	}
	result.Saturated = IsSaturated(result.Achieved, result.Target, c.ratio)
	result.Push = c.tracker.Snapshot(latency.StagePush)
	result.Processing = c.tracker.Snapshot(latency.StageProcessing)
	result.Alert = c.tracker.Snapshot(latency.StageAlert)

	target := strconv.FormatUint(result.Target, 10)
	metrics.StressAchievedThroughput.WithLabelValues(target).Set(result.Achieved)
	metrics.StressLevelsTotal.WithLabelValues(strconv.FormatBool(result.Saturated)).Inc()
	metrics.StressLevelDuration.Observe(result.Elapsed.Seconds())

	return result
}

// poll drains one tick and evaluates its rows
func (c *Controller) poll(ctx context.Context, result *LevelResult, origin time.Time) {
	out, err := c.pipeline.Poll(ctx)
	if err != nil {
		result.PollErrors++
		metrics.PipelineErrors.WithLabelValues("poll").Inc()
		c.logger.Warnw("Stress poll failed", "level", result.Level+1, "error", err)
		return
	}
	c.tracker.Polled()
	result.Processed += uint64(out.Processed)
	result.Rows += uint64(len(out.Rows))
	for _, row := range out.Rows {
		result.StreamRows[row.Stream()]++
	}

	if c.engine == nil {
		return
	}
	for _, row := range out.Rows {
		if alert, ok := c.engine.Evaluate(row, origin); ok {
			result.Alerts++
			c.tracker.Record(latency.StageAlert, alert.LatencyUs)
		}
	}
}
