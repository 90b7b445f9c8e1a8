package goroutine

import (
	"runtime"
	"testing"
	"time"
)

// AssertNoLeaks registers a cleanup that verifies the goroutine count
// returns to its value at call time. Call it at the start of a test that
// launches goroutines.
func AssertNoLeaks(t *testing.T) {
	t.Helper()
	AssertNoLeaksWithTimeout(t, 5*time.Second, 100*time.Millisecond)
}

// AssertNoLeaksWithTimeout is like AssertNoLeaks but with custom timeout and polling interval
func AssertNoLeaksWithTimeout(t *testing.T, timeout, pollInterval time.Duration) {
	t.Helper()
	before := runtime.NumGoroutine()

	t.Cleanup(func() {
		if WaitForGoroutineCount(before, timeout, pollInterval) {
			return
		}

		current := runtime.NumGoroutine()
		t.Errorf("goroutine leak detected: started with %d goroutines, ended with %d (leaked %d)",
			before, current, current-before)

		buf := make([]byte, 1024*1024)
		n := runtime.Stack(buf, true)
		t.Logf("Active goroutines:\n%s", string(buf[:n]))
	})
}

// WaitForGoroutineCount waits until the goroutine count drops to target or timeout expires.
// Returns true if target was reached.
func WaitForGoroutineCount(target int, timeout, pollInterval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= target {
			return true
		}
		time.Sleep(pollInterval)
	}
	return runtime.NumGoroutine() <= target
}
