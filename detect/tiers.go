package detect

import (
	"fmt"

	"fraudwatch/core"
)

// Op is a threshold comparison used by a severity tier
type Op string

const (
	OpGreater      Op = "gt"
	OpGreaterEqual Op = "gte"
	OpLess         Op = "lt"
)

// String returns the string representation
func (o Op) String() string {
	return string(o)
}

// IsValid checks if the operator is supported
func (o Op) IsValid() bool {
	switch o {
	case OpGreater, OpGreaterEqual, OpLess:
		return true
	default:
		return false
	}
}

// Matches reports whether score satisfies the comparison against threshold
func (o Op) Matches(score, threshold float64) bool {
	switch o {
	case OpGreater:
		return score > threshold
	case OpGreaterEqual:
		return score >= threshold
	case OpLess:
		return score < threshold
	default:
		return false
	}
}

// Tier maps a score comparison to a severity
type Tier struct {
	Op        Op
	Threshold float64
	Severity  core.Severity
}

// TierTable is an ordered list of tiers, most severe first.
// The first matching tier wins.
type TierTable []Tier

// Classify returns the severity of the first tier score satisfies
func (t TierTable) Classify(score float64) (core.Severity, bool) {
	for _, tier := range t {
		if tier.Op.Matches(score, tier.Threshold) {
			return tier.Severity, true
		}
	}
	return 0, false
}

// Validate checks that every tier has a known operator and severity
func (t TierTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("tier table is empty")
	}
	for i, tier := range t {
		if !tier.Op.IsValid() {
			return fmt.Errorf("tier %d: invalid operator %q", i, tier.Op)
		}
		if !tier.Severity.IsValid() {
			return fmt.Errorf("tier %d: invalid severity %d", i, int(tier.Severity))
		}
	}
	return nil
}

var (
	VolumeTiers = TierTable{
		{OpGreater, 10, core.SeverityCritical},
		{OpGreater, 5, core.SeverityHigh},
		{OpGreater, 2, core.SeverityMedium},
	}

	PriceRangeTiers = TierTable{
		{OpGreater, 0.05, core.SeverityCritical},
		{OpGreater, 0.01, core.SeverityHigh},
		{OpGreater, 0.002, core.SeverityMedium},
	}

	RapidFireTiers = TierTable{
		{OpGreater, 50, core.SeverityCritical},
		{OpGreater, 20, core.SeverityHigh},
		{OpGreaterEqual, 5, core.SeverityMedium},
	}

	WashTiers = TierTable{
		{OpLess, 0.02, core.SeverityCritical},
		{OpLess, 0.05, core.SeverityHigh},
		{OpLess, 0.3, core.SeverityMedium},
	}

	MatchTiers = TierTable{
		{OpLess, 0.001, core.SeverityHigh},
		{OpLess, 1.0, core.SeverityMedium},
	}

	// FrontRunTiers score the gap in milliseconds between an order and the
	// trade that moved price in its favour
	FrontRunTiers = TierTable{
		{OpLess, 100, core.SeverityCritical},
		{OpLess, 500, core.SeverityHigh},
		{OpLess, 2000, core.SeverityMedium},
	}
)

// WashMinSideCount is the minimum number of trades per side before a
// balanced account/symbol pair is considered wash trading
const WashMinSideCount = 2
