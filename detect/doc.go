// Package detect classifies aggregate rows into fraud alerts.
//
// Each detection stream keeps a rolling baseline per grouping key and maps
// its stream score onto an ordered severity tier table. AlertEngine owns the
// baselines, the bounded alert log and the per-type counters.
package detect
