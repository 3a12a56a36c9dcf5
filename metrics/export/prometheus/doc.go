// Package prometheus exposes bankauth metrics as a prometheus.Collector.
//
// [Collector] reads [bankauth.Engine.MetricsSnapshot] on every scrape and
// emits one counter per Engine counter (bankauth_*_total), the latency
// histograms (bankauth_*_latency_seconds) and bankauth_audit_dropped_total.
//
// # What this package must NOT do
//
//   - Register into the global Prometheus registry. Callers register the
//     Collector or mount [Collector.Handler].
//   - Mutate engine state.
package prometheus
