// Package otel publishes boardguard engine metrics as OpenTelemetry
// observable instruments.
//
// Guard outcomes are one counter, boardguard_authorize_decisions_total,
// with an "outcome" attribute. The latency histogram is exposed as one
// cumulative gauge per bucket plus a count gauge, since the engine keeps
// fixed buckets rather than raw samples.
//
// # What this package must NOT do
//
//   - Create or own a MeterProvider; callers pass a Meter.
//   - Mutate engine state.
package otel
