// Package core defines the domain model shared by the fraudwatch packages.
//
// # Overview
//
// The core package provides:
//   - Input records pushed into the streaming pipeline (Trade, Order, Batch)
//   - The AggregateRow variants emitted by the pipeline, one per detection stream
//   - Alert, AlertType and Severity produced by the detection engine
//
// Every type here is a plain value. Aggregate rows and alerts are immutable
// once created; packages that hold them hand out copies.
package core
