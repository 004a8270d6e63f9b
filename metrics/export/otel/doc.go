// Package otel publishes goGuard metrics through OpenTelemetry.
//
// [NewExporter] registers an Int64ObservableCounter per goGuard counter and an
// Int64ObservableGauge per merge latency bucket. One callback reads
// [goGuard.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
