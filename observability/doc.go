// Package observability provides an OpenTelemetry metrics extension for
// Warden. MetricsExtension implements the lifecycle hooks and keeps
// system-wide counters of reserved and released nodes, reservation
// conflicts, conductor registrations, heartbeats and heartbeat failures.
//
// For per-operation tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
