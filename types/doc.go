// Package types provides core type definitions and interfaces for the
// process-monitor library.
//
// This package contains shared types that are used across multiple packages
// in the library. By keeping these types in a separate package, we avoid
// import cycles between the main procmon package and its internal
// implementations.
//
// Key types:
//   - State: Process liveness state
//   - Evidence: Per-interval heartbeat observation
//   - ProcessStatus: Point-in-time view of one process
//   - Transition: Liveness state change notification
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
