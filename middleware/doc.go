// Package middleware provides composable middleware for warden operations.
//
// A [Middleware] wraps a single reservation or liveness operation. Middleware
// are composed into a chain using [Chain]. They are applied right-to-left:
// the first middleware in the slice is the outermost wrapper.
//
//	// recover → logging → handler
//	chain := middleware.Chain(middleware.Recover(logger), middleware.Logging(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs operation, actor, duration and outcome
//   - [Recover]: catches panics and converts them to errors
//   - [Tracing]: wraps each operation in an OpenTelemetry span
//   - [Metrics]: records per-operation duration and outcome counters
//
// [Outcome] classifies a result so conflicts (a node held by someone else)
// are not reported as failures.
package middleware
