package types

import "context"

// Hooks defines callbacks for Monitor liveness events.
//
// All hooks are optional and called asynchronously in background goroutines
// to avoid blocking the poll loop. Hooks receive the monitor's lifecycle
// context which will be cancelled during shutdown.
//
// IMPORTANT: Hook execution behavior:
//   - Hooks run concurrently and may not complete before Stop() returns
//   - The context passed to hooks is cancelled when the monitor stops
//   - Hook errors are logged but don't fail monitor operations
//   - When an ElectionAgent is configured, hooks only fire on the leader
//
// Best practices for hook implementation:
//   - Complete quickly (< 1 second recommended)
//   - Respect context cancellation
//   - Don't block on long I/O operations
//   - Make hooks idempotent (may be called multiple times)
//   - Handle errors gracefully (return error for logging)
//
// Example:
//
//	hooks := &procmon.Hooks{
//	    OnProcessDead: func(ctx context.Context, processID string) error {
//	        select {
//	        case <-ctx.Done():
//	            return ctx.Err() // Monitor is shutting down
//	        case alertChan <- processID:
//	            return nil
//	        case <-time.After(500 * time.Millisecond):
//	            return errors.New("alert send timeout")
//	        }
//	    },
//	}
type Hooks struct {
	// OnProcessAlive is called when a process transitions to StateAlive.
	OnProcessAlive func(ctx context.Context, processID string) error

	// OnProcessDead is called when a process transitions to StateDead by
	// missing its liveness timeout. Fault-induced deaths fire
	// OnProcessFault instead.
	OnProcessDead func(ctx context.Context, processID string) error

	// OnProcessFault is called once when a process detector latches a
	// time or reentry fault. The detector stays Dead until reset.
	OnProcessFault func(ctx context.Context, processID string) error

	// OnError is called when a recoverable error occurs.
	OnError func(ctx context.Context, err error) error
}
