// Package latency tracks per-stage pipeline latency in fixed-size sample
// windows and answers nearest-rank percentile queries over them.
package latency
