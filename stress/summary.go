package stress

// Summary condenses a ramp's results
type Summary struct {
	// FirstSaturated is the index of the first saturated level, or -1
	FirstSaturated int `json:"first_saturated" yaml:"first_saturated"`
	// Peak is the highest achieved throughput up to and including the
	// first saturated level, or across all levels when none saturated
	Peak      float64 `json:"peak_tps" yaml:"peak_tps"`
	PeakLevel int     `json:"peak_level" yaml:"peak_level"`
}

// Saturated reports whether any level saturated
func (s Summary) Saturated() bool {
	return s.FirstSaturated >= 0
}

// Summarize computes the summary of ordered level results
func Summarize(results []LevelResult) Summary {
	s := Summary{FirstSaturated: -1, PeakLevel: -1}
	for i, r := range results {
		if r.Saturated {
			s.FirstSaturated = i
			break
		}
	}

	last := len(results) - 1
	if s.FirstSaturated >= 0 {
		last = s.FirstSaturated
	}
	for i := 0; i <= last; i++ {
		if s.PeakLevel < 0 || results[i].Achieved > s.Peak {
			s.Peak = results[i].Achieved
			s.PeakLevel = i
		}
	}
	return s
}
