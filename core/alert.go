package core

import "fmt"

// AlertType classifies what kind of fraud pattern an alert describes
type AlertType string

const (
	AlertVolumeAnomaly   AlertType = "VolumeAnomaly"
	AlertPriceSpike      AlertType = "PriceSpike"
	AlertRapidFire       AlertType = "RapidFire"
	AlertWashTrading     AlertType = "WashTrading"
	AlertSuspiciousMatch AlertType = "SuspiciousMatch"
	AlertFrontRunning    AlertType = "FrontRunning"
)

// AlertTypes lists every alert type in a stable order
var AlertTypes = []AlertType{
	AlertVolumeAnomaly,
	AlertPriceSpike,
	AlertRapidFire,
	AlertWashTrading,
	AlertSuspiciousMatch,
	AlertFrontRunning,
}

// String returns the string representation
func (t AlertType) String() string {
	return string(t)
}

// IsValid checks if the alert type is known
func (t AlertType) IsValid() bool {
	for _, known := range AlertTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Severity is the escalation level of an alert. Values are ordered:
// Medium < High < Critical. Severities are only meaningful within one
// alert type.
type Severity int

const (
	SeverityMedium Severity = iota + 1
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityMedium:   "Medium",
	SeverityHigh:     "High",
	SeverityCritical: "Critical",
}

// String returns the string representation
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// IsValid checks if the severity is one of the defined levels
func (s Severity) IsValid() bool {
	_, ok := severityNames[s]
	return ok
}

// MarshalText encodes the severity by name
func (s Severity) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid severity: %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity parses a severity name
func ParseSeverity(name string) (Severity, error) {
	for sev, n := range severityNames {
		if n == name {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("invalid severity: %q", name)
}

// Alert is a classified fraud alert. Alerts are immutable once created.
type Alert struct {
	ID          uint64    `json:"id" msgpack:"id"`
	Type        AlertType `json:"alert_type" msgpack:"alert_type"`
	Severity    Severity  `json:"severity" msgpack:"severity"`
	Description string    `json:"description" msgpack:"description"`
	LatencyUs   uint64    `json:"latency_us" msgpack:"latency_us"`
	TimestampMs int64     `json:"timestamp_ms" msgpack:"timestamp_ms"`
}
