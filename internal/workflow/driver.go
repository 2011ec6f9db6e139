package workflow

import (
	"context"
	"time"
)

// Engine owns the resource shared by every Execution it starts: an
// optional Telemetry hook. Task states carry their own TaskExecutor,
// wired in by Build. It holds no per-run state -- a single Engine safely starts many
// concurrent Executions over the same or different StateMachines
// (spec.md 5).
type Engine struct {
	telemetry *Telemetry
}

// NewEngine constructs an Engine. telemetry may be nil.
func NewEngine(telemetry *Telemetry) *Engine {
	return &Engine{telemetry: telemetry}
}

// StartExecution creates a new Execution ready to run, with its input
// snapshotted (spec.md 3's immutability invariant: the original input is
// never mutated after this point) and Status set to Running.
func (e *Engine) StartExecution(name string, sm *StateMachine, input Value, logger Logger) *Execution {
	if logger == nil {
		logger = NopLogger
	}
	snapshot := cloneValue(input)
	return &Execution{
		ID:           generateExecutionID(),
		Name:         name,
		StateMachine: sm,
		Input:        snapshot,
		Output:       cloneValue(snapshot),
		Status:       StatusRunning,
		CurrentState: sm.StartAt,
		History:      nil,
		StartTime:    time.Now(),
		Context:      make(map[string]any),
		logger:       logger,
	}
}

// RunNext executes exactly one state step (spec.md 4.13). It is a no-op
// returning nil once the execution has left Running.
func (e *Engine) RunNext(ctx context.Context, ex *Execution) error {
	if ex.Status != StatusRunning {
		return nil
	}

	node, ok := ex.StateMachine.States[ex.CurrentState]
	if !ok {
		err := newError(ErrStateNotFound, "state %q is not declared in this state machine", ex.CurrentState)
		e.failExecution(ex, err)
		return err
	}

	ex.logger.Debug("workflow %s: entering state %s (%s)", ex.Name, node.Name(), node.Kind())

	start := time.Now()
	spanCtx, endSpan := e.telemetry.startSpan(ctx, ex.Name, node.Name(), node.Kind())

	output, err := node.Execute(spanCtx, ex, ex.Output)
	endSpan(err, time.Since(start).Seconds())

	stepInput := ex.Output
	if err != nil {
		ex.History = append(ex.History, HistoryEntry{
			StateName: node.Name(),
			Input:     stepInput,
			Output:    nil,
			Timestamp: time.Now(),
		})
		e.failExecution(ex, err)
		ex.logger.Error("workflow %s: state %s failed: %v", ex.Name, node.Name(), err)
		return err
	}

	ex.Output = output
	ex.History = append(ex.History, HistoryEntry{
		StateName: node.Name(),
		Input:     stepInput,
		Output:    output,
		Timestamp: time.Now(),
	})

	if node.IsTerminal() {
		ex.Status = StatusSucceeded
		ex.EndTime = time.Now()
		ex.logger.Info("workflow %s: succeeded at state %s", ex.Name, node.Name())
		return nil
	}

	next, hasNext := "", false
	if override, ok := ex.Context[nextOverrideKey]; ok {
		next, hasNext = override.(string), true
		delete(ex.Context, nextOverrideKey)
	} else {
		next, hasNext = node.NextState()
	}

	if !hasNext {
		// The builder guarantees every non-terminal state declares
		// exactly one of Next or End, so reaching here with no context
		// override and NextState reporting false means this state
		// declared End: true -- the execution ends successfully here,
		// exactly as it would at a Succeed state.
		ex.Status = StatusSucceeded
		ex.EndTime = time.Now()
		ex.logger.Info("workflow %s: succeeded at state %s (End: true)", ex.Name, node.Name())
		return nil
	}

	if _, ok := ex.StateMachine.States[next]; !ok {
		notFound := newError(ErrStateNotFound, "state %q transitions to unknown state %q", node.Name(), next)
		e.failExecution(ex, notFound)
		return notFound
	}

	ex.CurrentState = next
	return nil
}

// RunAll drives an execution to completion, calling RunNext until
// Status leaves Running. The returned error is the same error the last
// RunNext call returned, if any.
func (e *Engine) RunAll(ctx context.Context, ex *Execution) error {
	for ex.Status == StatusRunning {
		if err := e.RunNext(ctx, ex); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) failExecution(ex *Execution, err error) {
	ex.Status = StatusFailed
	ex.EndTime = time.Now()
	if wfErr, ok := err.(WorkflowError); ok {
		ex.Error = wfErr.Name()
		ex.Cause = wfErr.Cause()
	} else {
		ex.Error = "Error"
		ex.Cause = err.Error()
	}
}

// runNestedStateMachine drives sm to completion from input as a
// self-contained sub-run -- used by Parallel branches (spec.md 4.9),
// which are themselves complete nested state machines sharing the
// parent's Engine, Logger and TaskExecutor wiring (each Task state
// already carries its own Executor/intrinsic evaluator from Build).
// The nested context map is a shallow copy of the parent's, per
// spec.md 5, so branch-local Catch/Choice overrides never leak back to
// the parent or to sibling branches.
func (e *Engine) runNestedStateMachine(ctx context.Context, sm *StateMachine, executionName string, input Value, logger Logger, parentContext map[string]any) (Value, []HistoryEntry, error) {
	nested := e.StartExecution(executionName, sm, input, logger)
	for k, v := range parentContext {
		nested.Context[k] = v
	}

	for nested.Status == StatusRunning {
		if err := e.RunNext(ctx, nested); err != nil {
			return nested.Output, nested.History, err
		}
	}
	if nested.Status == StatusFailed {
		return nested.Output, nested.History, namedError(nested.Error, nested.Cause)
	}
	return nested.Output, nested.History, nil
}
