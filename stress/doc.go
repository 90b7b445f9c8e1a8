// Package stress drives the pipeline through an ascending ramp of load
// levels and measures achieved against target throughput at each one.
//
// Each level paces batches with a token bucket, resets the latency stages it
// reports on, and classifies itself as saturated when the achieved rate falls
// below a fixed share of the target. The ramp always runs to completion; the
// first saturated level and the peak sustained rate are reported in Summary.
package stress
