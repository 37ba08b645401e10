// Package clock abstracts the tick source that drives liveness evaluation.
//
// Production monitors use Monotonic. Wall is provided for deployments that
// need ticks comparable across machines and accept wall-clock hazards.
// Manual gives tests deterministic control over time, including driving it
// backwards to exercise fault handling.
package clock
