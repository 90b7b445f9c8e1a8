package latency

import (
	"math"
	"slices"
	"sync"
	"time"

	"fraudwatch/metrics"
)

// Stage is a measured segment of the pipeline
type Stage string

const (
	// StagePush is the time taken to push one batch into the pipeline
	StagePush Stage = "push"
	// StageProcessing is the time from the last push until rows are polled
	StageProcessing Stage = "processing"
	// StageAlert is the time from data generation until an alert is raised
	StageAlert Stage = "alert"
)

// Stages lists every stage in display order
var Stages = []Stage{StagePush, StageProcessing, StageAlert}

// String returns the string representation
func (s Stage) String() string {
	return string(s)
}

// IsValid checks if the stage is known
func (s Stage) IsValid() bool {
	return slices.Contains(Stages, s)
}

// Stats summarises one stage. Percentiles are over the retained window;
// Min and Max cover every sample since the stage was last reset.
type Stats struct {
	P50   uint64 `json:"p50_us" yaml:"p50_us" msgpack:"p50_us"`
	P95   uint64 `json:"p95_us" yaml:"p95_us" msgpack:"p95_us"`
	P99   uint64 `json:"p99_us" yaml:"p99_us" msgpack:"p99_us"`
	Min   uint64 `json:"min_us" yaml:"min_us" msgpack:"min_us"`
	Max   uint64 `json:"max_us" yaml:"max_us" msgpack:"max_us"`
	Count int    `json:"count" yaml:"count" msgpack:"count"`
}

// Tracker keeps one sample ring per stage. A single writer records while
// any number of readers query; readers never observe a partially reset ring.
type Tracker struct {
	mu       sync.RWMutex
	rings    map[Stage]*Ring
	window   int
	lastPush time.Time
	now      func() time.Time
}

// NewTracker creates a tracker keeping windowSize samples per stage
func NewTracker(windowSize int) *Tracker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	t := &Tracker{
		rings:  make(map[Stage]*Ring, len(Stages)),
		window: windowSize,
		now:    time.Now,
	}
	for _, stage := range Stages {
		t.rings[stage] = NewRing(windowSize)
	}
	return t
}

// Record stores one microsecond sample for stage. Unknown stages are ignored.
func (t *Tracker) Record(stage Stage, us uint64) {
	t.mu.Lock()
	ring, ok := t.rings[stage]
	if ok {
		ring.Record(us)
	}
	t.mu.Unlock()

	if ok {
		metrics.StageLatency.WithLabelValues(stage.String()).Observe(float64(us) / 1e6)
	}
}

// Observe stores a duration sample for stage
func (t *Tracker) Observe(stage Stage, d time.Duration) {
	if d < 0 {
		d = 0
	}
	t.Record(stage, uint64(d.Microseconds()))
}

// PushDone records a push that started at start and remembers when it
// finished so the next poll can measure processing time
func (t *Tracker) PushDone(start time.Time) {
	now := t.now()
	t.Observe(StagePush, now.Sub(start))

	t.mu.Lock()
	t.lastPush = now
	t.mu.Unlock()
}

// Polled records the processing time since the most recent push.
// Nothing is recorded before the first push.
func (t *Tracker) Polled() {
	t.mu.RLock()
	last := t.lastPush
	t.mu.RUnlock()

	if last.IsZero() {
		return
	}
	t.Observe(StageProcessing, t.now().Sub(last))
}

// Percentile returns the nearest-rank percentile of the retained samples.
// ok is false when the stage holds no samples or p is outside (0, 100].
func (t *Tracker) Percentile(stage Stage, p float64) (uint64, bool) {
	if p <= 0 || p > 100 || math.IsNaN(p) {
		return 0, false
	}

	t.mu.RLock()
	ring, ok := t.rings[stage]
	var samples []uint64
	if ok {
		samples = ring.Copy()
	}
	t.mu.RUnlock()

	if len(samples) == 0 {
		return 0, false
	}
	slices.Sort(samples)
	return nearestRank(samples, p), true
}

// Snapshot summarises one stage. An empty or unknown stage yields zero Stats.
func (t *Tracker) Snapshot(stage Stage) Stats {
	t.mu.RLock()
	ring, ok := t.rings[stage]
	if !ok {
		t.mu.RUnlock()
		return Stats{}
	}
	samples := ring.Copy()
	minUs, maxUs := ring.Min(), ring.Max()
	t.mu.RUnlock()

	if len(samples) == 0 {
		return Stats{}
	}
	slices.Sort(samples)
	return Stats{
		P50:   nearestRank(samples, 50),
		P95:   nearestRank(samples, 95),
		P99:   nearestRank(samples, 99),
		Min:   minUs,
		Max:   maxUs,
		Count: len(samples),
	}
}

// Snapshots summarises every stage
func (t *Tracker) Snapshots() map[Stage]Stats {
	out := make(map[Stage]Stats, len(Stages))
	for _, stage := range Stages {
		out[stage] = t.Snapshot(stage)
	}
	return out
}

// Reset discards the samples of the given stages, or of every stage when
// none are given. Each ring is replaced rather than cleared in place.
func (t *Tracker) Reset(stages ...Stage) {
	if len(stages) == 0 {
		stages = Stages
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, stage := range stages {
		if _, ok := t.rings[stage]; !ok {
			continue
		}
		t.rings[stage] = NewRing(t.window)
		if stage == StagePush {
			t.lastPush = time.Time{}
		}
	}
}

// nearestRank picks the value at rank ceil(p/100 * n) from sorted samples
func nearestRank(sorted []uint64, p float64) uint64 {
	n := len(sorted)
	idx := int(math.Ceil(p*float64(n)/100)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
