package workflow

import "context"

// stateNode is the shared contract every one of the seven state
// variants implements (spec.md 9's tagged-sum design: validate,
// execute, nextStateName, isTerminal). The driver never switches on
// concrete type; it only calls through this interface.
type stateNode interface {
	Name() string

	// Kind names the state's variant ("Task", "Choice", "Wait",
	// "Parallel", "Pass", "Succeed", "Fail") for logging and telemetry.
	Kind() string

	// Execute runs the state against input (the execution's current
	// output) and returns the state's output. An error implements
	// WorkflowError, except a context error returned when a retry wait
	// is cancelled, and always means the execution as a
	// whole transitions to Failed -- Task/Choice/Parallel/Wait handle
	// their own internal retry/catch recovery and only return an error
	// once that recovery has been exhausted or does not apply.
	Execute(ctx context.Context, ex *Execution, input Value) (Value, error)

	// NextState returns the declared Next target, or ok=false if the
	// state declares End: true -- which the driver treats as a
	// successful end of the execution, exactly like IsTerminal.
	NextState() (name string, ok bool)

	// IsTerminal is true only for Succeed and Fail: states whose
	// completion ends the execution outright regardless of Next/End.
	IsTerminal() bool
}

// baseState holds the Next/End pair shared by every non-terminal state
// variant, and implements the NextState half of stateNode for them.
type baseState struct {
	StateName string
	Next      string
	End       bool
}

func (b baseState) Name() string { return b.StateName }

func (b baseState) NextState() (string, bool) {
	if b.End {
		return "", false
	}
	return b.Next, true
}

func (b baseState) IsTerminal() bool { return false }
