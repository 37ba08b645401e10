package types

import "context"

// ProcessSource discovers and provides the set of processes to monitor.
//
// Implementations can query various backends:
//   - etcd: lease-registered process records (see the discovery package)
//   - Static: fixed list for testing
//   - Custom: any dynamic process discovery logic
//
// When a source is configured it is authoritative: each refresh reconciles
// the monitor's tracked set to the returned list. The Monitor calls
// ListProcesses during:
//   - Startup (initial discovery)
//   - Periodic refresh (SourceRefreshInterval)
type ProcessSource interface {
	// ListProcesses returns the IDs of all processes that should be
	// monitored.
	//
	// Implementations should:
	//   - Return consistent results for the same backend state
	//   - Handle context cancellation gracefully
	//   - Return errors for transient failures (will be retried)
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//
	// Returns:
	//   - []string: IDs of discovered processes
	//   - error: Discovery error (nil on success)
	ListProcesses(ctx context.Context) ([]string, error)
}
