// Package prometheus exposes engine metrics as a client_golang Collector.
//
// [NewExporter] reads [lireddit.Engine.MetricsSnapshot] on every scrape and
// emits const metrics, so the engine keeps its lock-free counters and the
// exporter holds no state of its own. Counter names are lireddit_*_total; the
// single histogram is lireddit_session_resolve_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. [Exporter.Handler] uses a
//     private one; callers that want the default registry call Register.
//   - Mutate engine state.
package prometheus
