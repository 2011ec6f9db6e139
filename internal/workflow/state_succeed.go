package workflow

import "context"

// SucceedState is a terminal state that passes its (optionally
// filtered) input through unchanged and ends the execution successfully
// (spec.md 4.11). It never declares Next or End; reaching it always
// ends the run.
type SucceedState struct {
	StateName  string
	InputPath  string
	OutputPath string
}

func (s *SucceedState) Name() string              { return s.StateName }
func (s *SucceedState) Kind() string              { return "Succeed" }
func (s *SucceedState) NextState() (string, bool) { return "", false }
func (s *SucceedState) IsTerminal() bool           { return true }

func (s *SucceedState) Execute(_ context.Context, _ *Execution, input Value) (Value, error) {
	effectiveInput := getAt(input, s.InputPath)
	return getAt(effectiveInput, s.OutputPath), nil
}
