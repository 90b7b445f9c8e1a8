package stress

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLevels(t *testing.T) {
	levels := DefaultLevels(10 * time.Second)

	require.Len(t, levels, 7)
	assert.Equal(t, uint64(100), levels[0].TargetTPS)
	assert.Equal(t, uint64(200_000), levels[6].TargetTPS)
	for i := 1; i < len(levels); i++ {
		assert.Greater(t, levels[i].TargetTPS, levels[i-1].TargetTPS)
		assert.Equal(t, 10*time.Second, levels[i].Duration)
	}
	assert.NoError(t, ValidateLevels(levels))
}

func TestValidateLevels(t *testing.T) {
	assert.True(t, errors.Is(ValidateLevels(nil), ErrNoLevels))
	assert.Error(t, ValidateLevels([]Level{{TargetTPS: 0, BatchSize: 1, Duration: time.Second}}))
	assert.Error(t, ValidateLevels([]Level{{TargetTPS: 10, BatchSize: 0, Duration: time.Second}}))
	assert.Error(t, ValidateLevels([]Level{{TargetTPS: 10, BatchSize: 1}}))
}
