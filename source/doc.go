// Package source provides built-in process source implementations.
//
// Process sources enumerate the process IDs a monitor should track.
// The package includes:
//
//   - Static: Fixed list of process IDs with manual updates
//
// Custom sources can be implemented by satisfying the types.ProcessSource
// interface. For lease-based registration backed by etcd, see the
// discovery package, which pushes membership changes instead of being
// polled.
package source
