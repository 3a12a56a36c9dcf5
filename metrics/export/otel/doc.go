// Package otel publishes bankauth metrics through an OpenTelemetry Meter.
//
// [NewExporter] registers an Int64ObservableCounter per Engine counter and an
// Int64ObservableGauge per histogram bucket. One callback reads
// [bankauth.Engine.MetricsSnapshot] per collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
