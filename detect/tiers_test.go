package detect

import (
	"testing"

	"fraudwatch/core"

	"github.com/stretchr/testify/assert"
)

func TestOp_Matches(t *testing.T) {
	assert.True(t, OpGreater.Matches(2.0001, 2))
	assert.False(t, OpGreater.Matches(2, 2))
	assert.True(t, OpGreaterEqual.Matches(5, 5))
	assert.True(t, OpLess.Matches(0.29, 0.3))
	assert.False(t, OpLess.Matches(0.3, 0.3))
	assert.False(t, Op("between").Matches(1, 1))
}

func TestTierTable_FirstMatchWins(t *testing.T) {
	table := TierTable{
		{OpGreater, 10, core.SeverityCritical},
		{OpGreater, 5, core.SeverityHigh},
		{OpGreater, 2, core.SeverityMedium},
	}

	sev, ok := table.Classify(11)
	assert.True(t, ok)
	assert.Equal(t, core.SeverityCritical, sev)

	sev, ok = table.Classify(6)
	assert.True(t, ok)
	assert.Equal(t, core.SeverityHigh, sev)

	_, ok = table.Classify(2)
	assert.False(t, ok)
}

func TestTierTables_Validate(t *testing.T) {
	for name, table := range map[string]TierTable{
		"volume":   VolumeTiers,
		"price":    PriceRangeTiers,
		"rapid":    RapidFireTiers,
		"wash":     WashTiers,
		"match":    MatchTiers,
		"frontrun": FrontRunTiers,
	} {
		assert.NoError(t, table.Validate(), name)
	}

	assert.Error(t, TierTable{}.Validate())
	assert.Error(t, TierTable{{Op("eq"), 1, core.SeverityHigh}}.Validate())
	assert.Error(t, TierTable{{OpLess, 1, core.Severity(9)}}.Validate())
}
