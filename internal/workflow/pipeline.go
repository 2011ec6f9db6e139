package workflow

import "strings"

// pipeline.go implements the six-step JSON data-flow pipeline spec.md
// 4.3 defines for Task, Parallel, and (in its own reduced form) Pass
// states:
//
//	InputPath -> Parameters (with intrinsics) -> raw result ->
//	ResultSelector -> ResultPath (replace-at-root / deep-merge-at-depth) -> OutputPath
//
// InputPath/OutputPath default to "$" (identity) when empty. ResultPath
// defaults to "$" too, which means the state's result *replaces* its
// input rather than merging into it -- only an explicit deeper
// ResultPath triggers a merge at the write site. Both fall out of
// parsePath("")/parsePath("$") tokenizing to the empty path and setAt's
// handling of it (see path.go).

// applyTemplate evaluates a Parameters or ResultSelector tree against
// source: object keys ending in ".$" have their string value evaluated
// as a path reference or intrinsic call against source and are
// re-keyed without the ".$" suffix; every other key is a literal,
// copied as-is (but still walked, so nested objects can mix literal and
// ".$" keys at any depth).
func applyTemplate(tree Value, source Value, intr *intrinsicEvaluator) Value {
	switch t := tree.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			if strings.HasSuffix(k, ".$") {
				key := strings.TrimSuffix(k, ".$")
				if s, ok := v.(string); ok {
					out[key] = evalTemplateString(s, source, intr)
				} else {
					out[key] = v
				}
				continue
			}
			out[k] = applyTemplate(v, source, intr)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = applyTemplate(v, source, intr)
		}
		return out
	default:
		return t
	}
}

// evalTemplateString resolves one ".$"-suffixed template value: "$$" is
// an alias for the full source object (the engine has no separate
// Context Object beyond the data being threaded, so "$$" and "$" both
// resolve against source); any other leading "$" is a path reference;
// an intrinsic call is evaluated; anything else is returned as a
// literal string.
func evalTemplateString(s string, source Value, intr *intrinsicEvaluator) Value {
	switch {
	case s == "$" || s == "$$":
		return source
	case len(s) > 0 && s[0] == '$':
		return getAt(source, s)
	case isIntrinsicCall(s):
		return intr.evalString(s, source)
	default:
		return s
	}
}

// pipelineSpec holds the five path/template fields of a Task state;
// Parallel states use the same struct with Parameters left unset.
type pipelineSpec struct {
	InputPath      string
	Parameters     map[string]any
	ResultSelector map[string]any
	ResultPath     string
	OutputPath     string
}

// runPipeline drives the full six-step pipeline around produce, which
// receives the effective input (post InputPath, post Parameters) and
// returns the raw result of doing the state's actual work (a Task
// invocation, or a Parallel fan-out/fan-in).
func runPipeline(stateInput Value, spec pipelineSpec, intr *intrinsicEvaluator, produce func(effectiveInput Value) (Value, error)) (Value, error) {
	effectiveInput := getAt(stateInput, spec.InputPath)

	paramInput := effectiveInput
	if spec.Parameters != nil {
		paramInput = applyTemplate(spec.Parameters, effectiveInput, intr)
	}

	raw, err := produce(paramInput)
	if err != nil {
		return nil, err
	}

	selected := raw
	if spec.ResultSelector != nil {
		selected = applyTemplate(spec.ResultSelector, raw, intr)
	}

	merged := setAt(stateInput, spec.ResultPath, selected)
	return getAt(merged, spec.OutputPath), nil
}
