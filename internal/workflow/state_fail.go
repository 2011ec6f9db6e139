package workflow

import "context"

// FailState is a terminal state that always ends the execution as
// Failed with the declared Error/Cause (spec.md 4.12). Both fields are
// required, non-empty strings; the builder rejects a Fail state missing
// either.
type FailState struct {
	StateName string
	Error     string
	Cause     string
}

func (s *FailState) Name() string              { return s.StateName }
func (s *FailState) Kind() string              { return "Fail" }
func (s *FailState) NextState() (string, bool) { return "", false }
func (s *FailState) IsTerminal() bool          { return true }

func (s *FailState) Execute(_ context.Context, _ *Execution, _ Value) (Value, error) {
	return nil, namedError(s.Error, s.Cause)
}
