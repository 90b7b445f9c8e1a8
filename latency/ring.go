package latency

// DefaultWindowSize is the number of samples kept per stage
const DefaultWindowSize = 1000

// Ring is a fixed-capacity circular buffer of microsecond samples.
// When full, a new sample overwrites the oldest one. Min and Max cover every
// sample recorded since the ring was created, not just the retained window.
// It is not safe for concurrent use; Tracker guards it.
type Ring struct {
	samples []uint64
	next    int
	size    int
	total   uint64
	min     uint64
	max     uint64
}

// NewRing creates an empty ring holding at most capacity samples
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Ring{samples: make([]uint64, capacity)}
}

// Record stores one sample
func (r *Ring) Record(us uint64) {
	if r.total == 0 || us < r.min {
		r.min = us
	}
	if us > r.max {
		r.max = us
	}
	r.total++

	r.samples[r.next] = us
	r.next = (r.next + 1) % len(r.samples)
	if r.size < len(r.samples) {
		r.size++
	}
}

// Len returns the number of retained samples
func (r *Ring) Len() int {
	return r.size
}

// Total returns the number of samples ever recorded
func (r *Ring) Total() uint64 {
	return r.total
}

// Cap returns the ring capacity
func (r *Ring) Cap() int {
	return len(r.samples)
}

// Min returns the smallest sample recorded
func (r *Ring) Min() uint64 {
	return r.min
}

// Max returns the largest sample recorded
func (r *Ring) Max() uint64 {
	return r.max
}

// Copy returns the retained samples, oldest first
func (r *Ring) Copy() []uint64 {
	out := make([]uint64, r.size)
	start := (r.next - r.size + len(r.samples)) % len(r.samples)
	for i := 0; i < r.size; i++ {
		out[i] = r.samples[(start+i)%len(r.samples)]
	}
	return out
}
