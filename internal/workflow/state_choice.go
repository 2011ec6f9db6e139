package workflow

import "context"

// ChoiceRule pairs one predicate with the state to run when it matches.
type ChoiceRule struct {
	Predicate Predicate
	Next      string
}

// ChoiceState evaluates its Rules in declared order and transitions to
// the first match's Next; failing that, to Default if declared;
// failing that, fails the execution with NoChoiceMatched (spec.md 4.7).
// Choice never modifies data -- it only filters it with InputPath and
// reports which state to run next via the execution's context slot,
// since (unlike every other state) its next state is chosen at
// evaluation time rather than declared statically.
type ChoiceState struct {
	StateName  string
	InputPath  string
	OutputPath string
	Rules      []ChoiceRule
	Default    string
	HasDefault bool
}

func (s *ChoiceState) Name() string { return s.StateName }
func (s *ChoiceState) Kind() string { return "Choice" }

// NextState is never consulted for ChoiceState: the driver always finds
// a pending override in Execution.Context after Execute runs, because
// Execute either sets one or returns NoChoiceMatched.
func (s *ChoiceState) NextState() (string, bool) { return "", false }

func (s *ChoiceState) IsTerminal() bool { return false }

func (s *ChoiceState) Execute(_ context.Context, ex *Execution, input Value) (Value, error) {
	effectiveInput := getAt(input, s.InputPath)

	for _, rule := range s.Rules {
		if evaluatePredicate(rule.Predicate, effectiveInput) {
			ex.Context[nextOverrideKey] = rule.Next
			return getAt(effectiveInput, s.OutputPath), nil
		}
	}

	if s.HasDefault {
		ex.Context[nextOverrideKey] = s.Default
		return getAt(effectiveInput, s.OutputPath), nil
	}

	return nil, newError(ErrNoChoiceMatched, "no Choice rule matched and no Default declared for state %q", s.StateName)
}
