package procmon

import "github.com/gitxandert/process-monitor/types"

// Sentinel errors returned by the Monitor.
//
// These alias the canonical instances in the types subpackage, so errors.Is
// matches regardless of which package the caller imported them from.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrAlreadyStarted is returned when Start is called on an already running monitor.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted is returned when Stop is called on a monitor that hasn't been started.
	ErrNotStarted = types.ErrNotStarted

	// ErrEmptyProcessID is returned when an operation names an empty process ID.
	ErrEmptyProcessID = types.ErrEmptyProcessID

	// ErrAlreadyTracked is returned when Track is called for a process that is already tracked.
	ErrAlreadyTracked = types.ErrAlreadyTracked

	// ErrUnknownProcess is returned when an operation names a process that is not tracked.
	ErrUnknownProcess = types.ErrUnknownProcess

	// ErrConnectivity is returned when the coordination backend is unreachable.
	ErrConnectivity = types.ErrConnectivity
)
