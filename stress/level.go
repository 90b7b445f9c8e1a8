package stress

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoLevels is returned when a ramp has no levels to run
var ErrNoLevels = errors.New("no stress levels configured")

// DefaultSaturationRatio is the share of the target a level must reach
const DefaultSaturationRatio = 0.9

// Level is one step of the load ramp
type Level struct {
	TargetTPS uint64        `mapstructure:"target_tps" yaml:"target_tps" json:"target_tps" validate:"gt=0"`
	BatchSize int           `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size" validate:"gt=0"`
	Duration  time.Duration `mapstructure:"duration" yaml:"duration" json:"duration"`
}

// DefaultLevels is the standard ramp from 100 to 200,000 events per second
func DefaultLevels(duration time.Duration) []Level {
	return []Level{
		{TargetTPS: 100, BatchSize: 10, Duration: duration},
		{TargetTPS: 250, BatchSize: 25, Duration: duration},
		{TargetTPS: 1_000, BatchSize: 50, Duration: duration},
		{TargetTPS: 2_000, BatchSize: 100, Duration: duration},
		{TargetTPS: 10_000, BatchSize: 200, Duration: duration},
		{TargetTPS: 50_000, BatchSize: 500, Duration: duration},
		{TargetTPS: 200_000, BatchSize: 1000, Duration: duration},
	}
}

// ValidateLevels checks that a ramp can be run
func ValidateLevels(levels []Level) error {
	if len(levels) == 0 {
		return ErrNoLevels
	}
	for i, l := range levels {
		if l.TargetTPS == 0 {
			return fmt.Errorf("level %d: target_tps must be positive", i)
		}
		if l.BatchSize <= 0 {
			return fmt.Errorf("level %d: batch_size must be positive", i)
		}
		if l.Duration <= 0 {
			return fmt.Errorf("level %d: duration must be positive", i)
		}
	}
	return nil
}

// IsSaturated reports whether achieved throughput fell below ratio of target
func IsSaturated(achieved float64, target uint64, ratio float64) bool {
	return achieved < ratio*float64(target)
}
