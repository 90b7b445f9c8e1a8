// Package pipeline defines the streaming engine collaborator and an
// in-process implementation of it.
package pipeline

import (
	"context"
	"errors"

	"fraudwatch/core"
)

// ErrClosed is returned by operations on a closed pipeline
var ErrClosed = errors.New("pipeline closed")

// Output is the result of one poll
type Output struct {
	Rows []core.AggregateRow
	// Processed is the number of input events consumed since the last poll
	Processed int
}

// Pipeline accepts batches of trades and orders and emits aggregate rows
type Pipeline interface {
	Push(ctx context.Context, batch core.Batch) error
	Poll(ctx context.Context) (Output, error)
	Close() error
}
