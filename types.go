package procmon

import "github.com/gitxandert/process-monitor/types"

// Re-export types from the internal types package.
//
// This file provides a stable, backward-compatible public API for the library's
// core types and interfaces. It uses type aliases to re-export definitions
// from the `types` subpackage, which contains the actual implementations.
//
// This pattern solves the "import cycle" problem by allowing internal packages
// to depend on `types` without depending on the root `procmon` package, while
// still providing a convenient `procmon.State`, `procmon.Logger`, etc. for users.
type (
	State         = types.State
	Evidence      = types.Evidence
	ProcessStatus = types.ProcessStatus
	Transition    = types.Transition
)

// Re-export interfaces from the internal types package for convenience.
type (
	ProcessSource    = types.ProcessSource
	ElectionAgent    = types.ElectionAgent
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export State constants from the internal types package.
const (
	StateUnknown = types.StateUnknown
	StateAlive   = types.StateAlive
	StateDead    = types.StateDead
)

// Re-export Evidence constants from the internal types package.
const (
	EvidenceNotSeen = types.EvidenceNotSeen
	EvidenceSeen    = types.EvidenceSeen
)
