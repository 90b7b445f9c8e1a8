package stress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fraudwatch/core"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Report is the exportable record of one ramp
type Report struct {
	RunID           string        `json:"run_id" yaml:"run_id"`
	StartedAt       time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt      time.Time     `json:"finished_at" yaml:"finished_at"`
	SaturationRatio float64       `json:"saturation_ratio" yaml:"saturation_ratio"`
	Results         []LevelResult `json:"results" yaml:"results"`
	Summary         Summary       `json:"summary" yaml:"summary"`
	// Partial is set when the run was cancelled before every level ran
	Partial bool `json:"partial" yaml:"partial"`
}

// NewReport bundles a finished run
func NewReport(started time.Time, ratio float64, planned int, results []LevelResult, summary Summary) *Report {
	return &Report{
		RunID:           uuid.New().String(),
		StartedAt:       started,
		FinishedAt:      time.Now(),
		SaturationRatio: ratio,
		Results:         results,
		Summary:         summary,
		Partial:         len(results) < planned,
	}
}

// Totals sums counters across levels
func (r *Report) Totals() (trades, orders, alerts uint64, elapsed time.Duration) {
	for _, res := range r.Results {
		trades += res.Trades
		orders += res.Orders
		alerts += res.Alerts
		elapsed += res.Elapsed
	}
	return trades, orders, alerts, elapsed
}

// StreamTotals sums polled rows per detection stream across levels
func (r *Report) StreamTotals() map[core.Stream]uint64 {
	totals := make(map[core.Stream]uint64, len(core.Streams))
	for _, res := range r.Results {
		for stream, n := range res.StreamRows {
			totals[stream] += n
		}
	}
	return totals
}

// JSON encodes the report as indented JSON
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report as JSON: %w", err)
	}
	return data, nil
}

// YAML encodes the report as YAML
func (r *Report) YAML() ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report as YAML: %w", err)
	}
	return data, nil
}

// WriteFile writes the report to path, as JSON when the extension is
// .json and as YAML otherwise
func (r *Report) WriteFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = r.JSON()
	} else {
		data, err = r.YAML()
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

// LoadReport reads a report written by WriteFile
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", path, err)
	}

	var r Report
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &r)
	} else {
		err = yaml.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return &r, nil
}
