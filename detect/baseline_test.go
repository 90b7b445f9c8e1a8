package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingBaseline_KeepsMostRecentInOrder(t *testing.T) {
	b := NewRollingBaseline(20)
	for i := 1; i <= 25; i++ {
		b.Push(float64(i))
	}

	require.Equal(t, 20, b.Len())
	values := b.Values()
	for i, v := range values {
		assert.Equal(t, float64(i+6), v)
	}
}

func TestRollingBaseline_Mean(t *testing.T) {
	b := NewRollingBaseline(3)

	_, ok := b.Mean()
	assert.False(t, ok, "empty baseline has no mean")

	b.Push(1)
	b.Push(2)
	b.Push(3)
	mean, ok := b.Mean()
	require.True(t, ok)
	assert.Equal(t, 2.0, mean)

	b.Push(10)
	mean, _ = b.Mean()
	assert.Equal(t, 5.0, mean)
}

func TestRollingBaseline_ValuesIsCopy(t *testing.T) {
	b := NewRollingBaseline(2)
	b.Push(1)

	values := b.Values()
	values[0] = 99

	assert.Equal(t, []float64{1}, b.Values())
}

func TestRollingBaseline_DefaultCapacity(t *testing.T) {
	b := NewRollingBaseline(0)
	for i := 0; i < 50; i++ {
		b.Push(1)
	}
	assert.Equal(t, DefaultBaselineWindow, b.Len())
}
