package goroutine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecover_NoPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	func() {
		defer Recover("quiet", logger)
	}()

	assert.Zero(t, logs.Len())
}

func TestRecover_StringPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	func() {
		defer Recover("tick-loop", logger)
		panic("test panic message")
	}()

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	assert.Equal(t, "Goroutine panic recovered", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "tick-loop", fields["goroutine"])
	assert.Equal(t, "test panic message", fields["panic"])
	stack, ok := fields["stack"].(string)
	require.True(t, ok)
	assert.Contains(t, stack, "goroutine")
	assert.LessOrEqual(t, len(stack), StackTraceBufferSize)
}

func TestRecover_ErrorPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	func() {
		defer Recover("publisher", logger)
		panic(assert.AnError)
	}()

	require.Equal(t, 1, logs.Len())
	assert.NotNil(t, logs.All()[0].ContextMap()["panic"])
}

func TestRecover_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		func() {
			defer Recover("no-logger", nil)
			panic("nobody listening")
		}()
	})
}

func TestGo_RecoversAndReleasesWaitGroup(t *testing.T) {
	AssertNoLeaks(t)
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	var wg sync.WaitGroup
	ran := make(chan struct{}, 1)
	Go(&wg, "ok", logger, func() { ran <- struct{}{} })
	Go(&wg, "boom", logger, func() { panic("boom") })
	wg.Wait()

	assert.Len(t, ran, 1)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["goroutine"])
}

func TestGo_NilWaitGroup(t *testing.T) {
	done := make(chan struct{})
	Go(nil, "detached", zaptest.NewLogger(t).Sugar(), func() { close(done) })
	<-done
}
