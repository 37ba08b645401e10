package source

import (
	"context"
	"sync"

	"github.com/gitxandert/process-monitor/types"
)

// Static implements a process source with a fixed list of process IDs.
type Static struct {
	mu        sync.RWMutex
	processes []string
}

var _ types.ProcessSource = (*Static)(nil)

// NewStatic creates a new static process source.
//
// The source returns a fixed list of process IDs that never changes
// unless Update is called. Useful for testing and scenarios where the
// monitored set is known at startup.
//
// Parameters:
//   - processes: Fixed list of process IDs
//
// Returns:
//   - *Static: Initialized static source
//
// Example:
//
//	src := source.NewStatic([]string{"payments-1", "payments-2"})
//	monitor, err := procmon.NewMonitor(cfg, procmon.WithProcessSource(src))
//	if err != nil { /* handle */ }
func NewStatic(processes []string) *Static {
	return &Static{
		processes: processes,
	}
}

// ListProcesses returns the static list of process IDs.
//
// Returns:
//   - []string: The fixed list of process IDs
//   - error: Always nil (never fails)
func (s *Static) ListProcesses(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, len(s.processes))
	copy(result, s.processes)

	return result, nil
}

// Update replaces the process list.
//
// This allows the static source to simulate dynamic membership changes,
// which is useful for testing refresh and reconciliation scenarios.
//
// Parameters:
//   - processes: New list of process IDs
//
// Example:
//
//	src := source.NewStatic(initial)
//	// Later: a new process joins
//	src.Update(append(initial, "payments-3"))
func (s *Static) Update(processes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processes = make([]string, len(processes))
	copy(s.processes, processes)
}
