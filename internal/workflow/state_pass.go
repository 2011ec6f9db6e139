package workflow

import "context"

// PassState emits a literal Result (when declared) or its effective
// input through the data-flow pipeline, performing no work of its own
// (spec.md 4.10).
type PassState struct {
	baseState

	InputPath  string
	Parameters map[string]any
	Result     Value
	HasResult  bool
	ResultPath string
	OutputPath string

	intr *intrinsicEvaluator
}

func (s *PassState) Kind() string { return "Pass" }

func (s *PassState) Execute(_ context.Context, _ *Execution, input Value) (Value, error) {
	effectiveInput := getAt(input, s.InputPath)

	var raw Value
	switch {
	case s.HasResult:
		raw = s.Result
	case s.Parameters != nil:
		raw = applyTemplate(s.Parameters, effectiveInput, s.intr)
	default:
		raw = effectiveInput
	}

	merged := setAt(input, s.ResultPath, raw)
	return getAt(merged, s.OutputPath), nil
}
