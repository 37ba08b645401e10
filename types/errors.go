package types

import (
	"errors"
	"strings"
)

// Sentinel errors for the process-monitor library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).
//
// Error Naming Convention:
//   - Use descriptive names with Err prefix
//   - Group by component (Monitor, Watcher, Roster, etc.)
//   - Use consistent messages across similar error types

// Monitor errors - Public API errors returned by the Monitor component.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAlreadyStarted is returned when Start is called on an already running monitor.
	ErrAlreadyStarted = errors.New("monitor already started")

	// ErrNotStarted is returned when operations require a started monitor.
	ErrNotStarted = errors.New("monitor not started")

	// ErrEmptyProcessID is returned when an operation receives an empty process ID.
	ErrEmptyProcessID = errors.New("process ID is empty")

	// ErrAlreadyTracked is returned when Track is called for a process already tracked.
	ErrAlreadyTracked = errors.New("process already tracked")

	// ErrUnknownProcess is returned when an operation references an untracked process.
	ErrUnknownProcess = errors.New("process not tracked")

	// ErrConnectivity indicates a NATS/KV connectivity issue.
	// This is used to distinguish network failures from application errors.
	ErrConnectivity = errors.New("connectivity issue")
)

// Watcher errors - Heartbeat watcher component errors.
var (
	// ErrWatcherAlreadyStarted is returned when Start is called on an already running watcher.
	ErrWatcherAlreadyStarted = errors.New("heartbeat watcher already started")

	// ErrWatcherAlreadyStopped is returned when Stop is called on an already stopped watcher.
	ErrWatcherAlreadyStopped = errors.New("heartbeat watcher already stopped")

	// ErrWatcherNotStarted is returned when Stop is called before Start.
	ErrWatcherNotStarted = errors.New("heartbeat watcher not started")

	// ErrWatchFailed is returned when NATS KV watch operations fail.
	ErrWatchFailed = errors.New("watch operation failed")
)

// Roster errors - Roster publication component errors.
var (
	// ErrNoRoster is returned when no roster snapshot has been published yet.
	ErrNoRoster = errors.New("no roster published")

	// ErrPublishFailed is returned when publishing a roster to NATS KV fails.
	ErrPublishFailed = errors.New("failed to publish roster")
)

// Common errors - Shared errors used across multiple components.
var (
	// ErrContextCanceled is returned when an operation is canceled by context.
	ErrContextCanceled = errors.New("operation canceled by context")

	// ErrNoKeysFound is returned when NATS KV returns no keys (expected condition).
	ErrNoKeysFound = errors.New("no keys found")
)

// IsNoKeysFoundError checks if an error indicates that no keys were found in NATS KV.
//
// This function handles NATS-specific "no keys found" errors which may come as:
//   - Direct error: "nats: no keys found"
//   - Wrapped error: "failed to list KV keys: nats: no keys found"
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true if the error indicates no keys were found, false otherwise
func IsNoKeysFoundError(err error) bool {
	if err == nil {
		return false
	}
	// Check against our sentinel error first
	if errors.Is(err, ErrNoKeysFound) {
		return true
	}
	// Check for NATS-specific error message (handles both direct and wrapped errors)
	return strings.Contains(err.Error(), "no keys found")
}
