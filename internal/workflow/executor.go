package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskExecutor is the caller-supplied callback a Task state invokes to
// perform actual work (spec.md 6). The engine never knows what a
// Resource string means; it only calls Execute and folds the result
// back through the data-flow pipeline. This mirrors the teacher's
// StepExecutor/ExecutorRegistry split (internal/workflows/runtime/executor.go),
// generalized to the single generic (resource, input, credentials) ->
// value contract spec.md requires instead of Station's agent/approval
// specific executors.
type TaskExecutor interface {
	Execute(ctx context.Context, resource string, input Value, credentials Value) (Value, error)
}

// TaskExecutorFunc adapts a plain function to TaskExecutor.
type TaskExecutorFunc func(ctx context.Context, resource string, input Value, credentials Value) (Value, error)

func (f TaskExecutorFunc) Execute(ctx context.Context, resource string, input Value, credentials Value) (Value, error) {
	return f(ctx, resource, input, credentials)
}

// ExecutorRegistry dispatches by Resource to a registered TaskExecutor,
// falling back to a single default executor, and finally to the
// canonical simulated result (spec.md 6) when nothing is registered.
// This is the generalized form of the teacher's ExecutorRegistry
// (Register/GetExecutor/Execute).
type ExecutorRegistry struct {
	mu         sync.RWMutex
	byResource map[string]TaskExecutor
	fallback   TaskExecutor
}

func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{byResource: make(map[string]TaskExecutor)}
}

// Register binds a TaskExecutor to an exact Resource string.
func (r *ExecutorRegistry) Register(resource string, executor TaskExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byResource[resource] = executor
}

// SetFallback sets the executor used for any Resource with no specific
// registration. Without a fallback, unregistered resources get the
// simulated stub result.
func (r *ExecutorRegistry) SetFallback(executor TaskExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = executor
}

func (r *ExecutorRegistry) Execute(ctx context.Context, resource string, input Value, credentials Value) (Value, error) {
	r.mu.RLock()
	executor, ok := r.byResource[resource]
	fallback := r.fallback
	r.mu.RUnlock()

	if ok {
		return executor.Execute(ctx, resource, input, credentials)
	}
	if fallback != nil {
		return fallback.Execute(ctx, resource, input, credentials)
	}
	return simulatedResult(resource, input), nil
}

// simulatedResult is the canonical stand-in result a Task state produces
// when no executor is registered for its Resource (spec.md 6).
func simulatedResult(resource string, input Value) Value {
	return map[string]any{
		"task_result":    "completed",
		"resource":       resource,
		"input_received": input,
		"timestamp":      float64(time.Now().Unix()),
		"execution_id":   uuid.NewString(),
		"simulated":      true,
	}
}
