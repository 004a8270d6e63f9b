// Package prometheus renders goGuard metrics in Prometheus text exposition
// format.
//
// [NewExporter] reads [goGuard.Engine.MetricsSnapshot] on every scrape. Counter
// names are goguard_*_total; the merge latency histogram is
// goguard_merge_latency_seconds and is written only when latency histograms
// are enabled.
//
// # What this package must NOT do
//
//   - Register with a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
