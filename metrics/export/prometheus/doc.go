// Package prometheus renders boardguard engine metrics in the Prometheus text
// exposition format.
//
// [NewExporter] reads [boardguard.Engine.MetricsSnapshot] on every scrape.
// Guard outcomes share one labeled family,
// boardguard_authorize_decisions_total{outcome="..."}; service counters are
// boardguard_*_total and the latency histogram is
// boardguard_authorize_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate engine state.
package prometheus
