package goroutine

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

const (
	// StackTraceBufferSize is the buffer size for stack trace collection
	StackTraceBufferSize = 4096
)

// Recover recovers from panics in goroutines and logs them.
// If logger is nil, falls back to stderr so the panic is still recorded.
func Recover(name string, logger *zap.SugaredLogger) {
	if r := recover(); r != nil {
		buf := make([]byte, StackTraceBufferSize)
		n := runtime.Stack(buf, false)

		if logger != nil {
			logger.Errorw("Goroutine panic recovered",
				"goroutine", name,
				"panic", r,
				"stack", string(buf[:n]))
		} else {
			fmt.Fprintf(os.Stderr, "PANIC in goroutine %s (no logger): %v\n%s\n",
				name, r, string(buf[:n]))
		}
	}
}

// Go runs fn in a named goroutine tracked by wg. A panic in fn is recovered
// and logged; wg is released either way. wg may be nil.
func Go(wg *sync.WaitGroup, name string, logger *zap.SugaredLogger, fn func()) {
	if wg != nil {
		wg.Add(1)
	}
	go func() {
		if wg != nil {
			defer wg.Done()
		}
		defer Recover(name, logger)
		fn()
	}()
}
