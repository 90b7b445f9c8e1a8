package detect

import "fraudwatch/core"

// DefaultAlertLogCapacity is the number of alerts kept for display
const DefaultAlertLogCapacity = 200

// AlertLog keeps the most recent alerts in arrival order and counts every
// alert ever appended. Counters are not affected by eviction.
// It is not safe for concurrent use; AlertEngine guards it.
type AlertLog struct {
	entries  []core.Alert
	start    int
	size     int
	byType   map[core.AlertType]uint64
	bySev    map[core.Severity]uint64
	appended uint64
}

// NewAlertLog creates an empty log holding at most capacity alerts
func NewAlertLog(capacity int) *AlertLog {
	if capacity <= 0 {
		capacity = DefaultAlertLogCapacity
	}
	return &AlertLog{
		entries: make([]core.Alert, capacity),
		byType:  make(map[core.AlertType]uint64),
		bySev:   make(map[core.Severity]uint64),
	}
}

// Append adds an alert, evicting the oldest one when full
func (l *AlertLog) Append(a core.Alert) {
	capacity := len(l.entries)
	if l.size < capacity {
		l.entries[(l.start+l.size)%capacity] = a
		l.size++
	} else {
		l.entries[l.start] = a
		l.start = (l.start + 1) % capacity
	}
	l.byType[a.Type]++
	l.bySev[a.Severity]++
	l.appended++
}

// Len returns the number of retained alerts
func (l *AlertLog) Len() int {
	return l.size
}

// Recent returns up to limit of the newest retained alerts in arrival order.
// A non-positive limit returns every retained alert.
func (l *AlertLog) Recent(limit int) []core.Alert {
	n := l.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]core.Alert, n)
	capacity := len(l.entries)
	first := l.start + l.size - n
	for i := 0; i < n; i++ {
		out[i] = l.entries[(first+i)%capacity]
	}
	return out
}

// Counts returns a copy of the per-type counters
func (l *AlertLog) Counts() map[core.AlertType]uint64 {
	out := make(map[core.AlertType]uint64, len(l.byType))
	for k, v := range l.byType {
		out[k] = v
	}
	return out
}

// SeverityCounts returns a copy of the per-severity counters
func (l *AlertLog) SeverityCounts() map[core.Severity]uint64 {
	out := make(map[core.Severity]uint64, len(l.bySev))
	for k, v := range l.bySev {
		out[k] = v
	}
	return out
}

// Total returns the number of alerts ever appended
func (l *AlertLog) Total() uint64 {
	return l.appended
}
