package detect

// DefaultBaselineWindow is the number of recent values a baseline keeps
const DefaultBaselineWindow = 20

// RollingBaseline holds the most recent values observed for one grouping key.
// It is not safe for concurrent use; AlertEngine guards it.
type RollingBaseline struct {
	values   []float64
	capacity int
}

// NewRollingBaseline creates an empty baseline holding at most capacity values
func NewRollingBaseline(capacity int) *RollingBaseline {
	if capacity <= 0 {
		capacity = DefaultBaselineWindow
	}
	return &RollingBaseline{
		values:   make([]float64, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a value, dropping the oldest one when full
func (b *RollingBaseline) Push(v float64) {
	if len(b.values) == b.capacity {
		copy(b.values, b.values[1:])
		b.values = b.values[:len(b.values)-1]
	}
	b.values = append(b.values, v)
}

// Mean returns the arithmetic mean of the held values.
// ok is false when the baseline is empty.
func (b *RollingBaseline) Mean() (mean float64, ok bool) {
	if len(b.values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range b.values {
		sum += v
	}
	return sum / float64(len(b.values)), true
}

// Len returns the number of held values
func (b *RollingBaseline) Len() int {
	return len(b.values)
}

// Values returns a copy of the held values, oldest first
func (b *RollingBaseline) Values() []float64 {
	out := make([]float64, len(b.values))
	copy(out, b.values)
	return out
}
