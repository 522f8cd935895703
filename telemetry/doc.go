// Package telemetry builds the OpenTelemetry tracer and meter providers for
// the lireddit server.
//
// Traces are exported over OTLP/gRPC or to stdout; the gin router picks them
// up through otelgin once [Telemetry.Install] sets the global providers.
// Metrics are exported through the OTel Prometheus bridge into the same
// registry that serves /metrics, or to stdout. "none" installs no-op
// providers.
//
// The engine's own counters reach the meter through
// metrics/export/otel; this package only owns provider lifecycle.
package telemetry
