package hooks

import (
	"context"

	"github.com/gitxandert/process-monitor/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, string) error = (*NopHooks)(nil).OnProcessAlive
	_ func(context.Context, string) error = (*NopHooks)(nil).OnProcessDead
	_ func(context.Context, string) error = (*NopHooks)(nil).OnProcessFault
	_ func(context.Context, error) error  = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnProcessAlive: h.OnProcessAlive,
		OnProcessDead:  h.OnProcessDead,
		OnProcessFault: h.OnProcessFault,
		OnError:        h.OnError,
	}
}

// OnProcessAlive is a no-op implementation.
func (h *NopHooks) OnProcessAlive(ctx context.Context, processID string) error {
	return nil
}

// OnProcessDead is a no-op implementation.
func (h *NopHooks) OnProcessDead(ctx context.Context, processID string) error {
	return nil
}

// OnProcessFault is a no-op implementation.
func (h *NopHooks) OnProcessFault(ctx context.Context, processID string) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(ctx context.Context, err error) error {
	return nil
}
