package workflow

import (
	"context"
	"time"
)

// heartbeatKey is the context key under which a heartbeat channel is
// published for the duration of one Task invocation.
type heartbeatKey struct{}

// Heartbeat reports liveness for the Task invocation running under ctx.
// A TaskExecutor whose work can legitimately run longer than
// HeartbeatSeconds between progress updates should call this
// periodically; if HeartbeatSeconds elapses with no call, the task is
// cancelled as a timeout. Calling Heartbeat outside a monitored Task
// invocation (HeartbeatSeconds unset, or not running under the engine)
// is a harmless no-op.
func Heartbeat(ctx context.Context) {
	if ch, ok := ctx.Value(heartbeatKey{}).(chan struct{}); ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// TaskState invokes a caller-supplied TaskExecutor through the
// data-flow pipeline, with optional timeout, heartbeat monitoring,
// retry, and catch (spec.md 4.4).
type TaskState struct {
	baseState

	Resource    string
	Credentials Value

	TimeoutSeconds   int
	HeartbeatSeconds int

	InputPath      string
	Parameters     map[string]any
	ResultSelector map[string]any
	ResultPath     string
	OutputPath     string

	Retry []RetryRule
	Catch []CatchRule

	Executor TaskExecutor
	intr     *intrinsicEvaluator
}

func (s *TaskState) Kind() string { return "Task" }

func (s *TaskState) pipelineSpec() pipelineSpec {
	return pipelineSpec{
		InputPath:      s.InputPath,
		Parameters:     s.Parameters,
		ResultSelector: s.ResultSelector,
		ResultPath:     s.ResultPath,
		OutputPath:     s.OutputPath,
	}
}

func (s *TaskState) Execute(ctx context.Context, ex *Execution, input Value) (Value, error) {
	output, err := runPipeline(input, s.pipelineSpec(), s.intr, func(effectiveInput Value) (Value, error) {
		return runWithRetry(ctx, s.Retry, func(retryCtx context.Context) (Value, error) {
			return s.invoke(retryCtx, effectiveInput)
		})
	})
	if err == nil {
		return output, nil
	}

	wfErr, ok := err.(WorkflowError)
	if !ok {
		return nil, err
	}
	rule, matched := matchCatch(s.Catch, wfErr)
	if !matched {
		return nil, err
	}

	resultPath := rule.ResultPath
	if resultPath == "" {
		resultPath = s.ResultPath
	}
	merged := setAt(input, resultPath, catchErrorObject(wfErr))
	ex.Context[nextOverrideKey] = rule.Next
	return getAt(merged, s.OutputPath), nil
}

// invoke runs the executor once under the state's timeout and heartbeat
// monitor. The monitor goroutine, when started, is guaranteed to exit
// on every path: normal completion (done closed), parent cancellation
// (ctx.Done), or its own heartbeat timeout (cancel then return) --
// spec.md 5's requirement that the heartbeat monitor is cancelled on
// all exits.
func (s *TaskState) invoke(ctx context.Context, effectiveInput Value) (Value, error) {
	execCtx := ctx
	var cancels []context.CancelFunc

	if s.TimeoutSeconds > 0 {
		c, cancel := context.WithTimeout(execCtx, time.Duration(s.TimeoutSeconds)*time.Second)
		execCtx = c
		cancels = append(cancels, cancel)
	}

	var done chan struct{}
	if s.HeartbeatSeconds > 0 {
		c, cancel := context.WithCancel(execCtx)
		execCtx = c
		cancels = append(cancels, cancel)

		heartbeatCh := make(chan struct{}, 1)
		execCtx = context.WithValue(execCtx, heartbeatKey{}, heartbeatCh)
		done = make(chan struct{})
		go monitorHeartbeat(execCtx, heartbeatCh, cancel, done, time.Duration(s.HeartbeatSeconds)*time.Second)
	}

	defer func() {
		if done != nil {
			close(done)
		}
		for _, cancel := range cancels {
			cancel()
		}
	}()

	result, err := s.Executor.Execute(execCtx, s.Resource, effectiveInput, s.Credentials)
	if err != nil {
		if execCtx.Err() != nil {
			return nil, newError(ErrTaskTimeout, "task %q timed out: %v", s.StateName, err)
		}
		if wfErr, ok := err.(WorkflowError); ok {
			return nil, wfErr
		}
		return nil, newError(ErrTaskFailed, "task %q failed: %v", s.StateName, err)
	}
	return result, nil
}

func monitorHeartbeat(ctx context.Context, signal <-chan struct{}, cancel context.CancelFunc, done <-chan struct{}, interval time.Duration) {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-signal:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(interval)
		case <-timer.C:
			cancel()
			return
		}
	}
}
