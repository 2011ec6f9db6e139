package workflow

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkjson"
)

// intrinsicEvaluator evaluates the fixed set of "States.*" helper
// functions that may appear as Parameters template values (spec.md 4.2).
// It is intentionally a tiny hand-rolled language, not a general
// expression engine: the function name is the text before the first
// "(", arguments are a flat comma-separated list of string literals, path
// references, numbers, or nested calls, and any failure anywhere in
// parsing or evaluation falls back to returning the original literal
// text untouched. Intrinsics never abort a state's execution.
type intrinsicEvaluator struct {
	allowEval bool
}

func newIntrinsicEvaluator(allowEval bool) *intrinsicEvaluator {
	return &intrinsicEvaluator{allowEval: allowEval}
}

// evalString evaluates raw as an intrinsic call against effectiveInput,
// falling back to raw itself (as a literal string Value) whenever raw is
// not recognized as a call, or whenever evaluation fails.
func (e *intrinsicEvaluator) evalString(raw string, effectiveInput Value) Value {
	name, args, ok := splitCall(raw)
	if !ok {
		return raw
	}
	evaluated := make([]Value, len(args))
	for i, a := range args {
		evaluated[i] = e.evalArg(a, effectiveInput)
	}
	result, err := e.call(name, evaluated)
	if err != nil {
		return raw
	}
	return result
}

// evalArg evaluates a single argument expression: a path reference, a
// quoted string literal, a number, a nested call, or (best-effort)
// returns the raw text.
func (e *intrinsicEvaluator) evalArg(arg string, effectiveInput Value) Value {
	arg = strings.TrimSpace(arg)
	switch {
	case strings.HasPrefix(arg, "$"):
		return getAt(effectiveInput, arg)
	case len(arg) >= 2 && arg[0] == '\'' && arg[len(arg)-1] == '\'':
		return arg[1 : len(arg)-1]
	case isIntrinsicCall(arg):
		return e.evalString(arg, effectiveInput)
	default:
		if n, err := strconv.ParseFloat(arg, 64); err == nil {
			return n
		}
		return arg
	}
}

func (e *intrinsicEvaluator) call(name string, args []Value) (Value, error) {
	switch name {
	case "States.Format":
		return statesFormat(args)
	case "States.StringToJson":
		return statesStringToJSON(args)
	case "States.JsonToString":
		return statesJSONToString(args)
	case "States.Array":
		return append([]Value{}, args...), nil
	case "States.MathRandom":
		return statesMathRandom(args)
	case "States.UUID":
		return uuid.NewString(), nil
	case "States.Eval":
		if !e.allowEval {
			return nil, fmt.Errorf("States.Eval disabled")
		}
		return statesEval(args)
	default:
		return nil, fmt.Errorf("unknown intrinsic %q", name)
	}
}

func statesFormat(args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("States.Format requires a template")
	}
	template, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("States.Format template must be a string")
	}
	var b strings.Builder
	argIdx := 1
	for i := 0; i < len(template); i++ {
		if template[i] == '{' && i+1 < len(template) && template[i+1] == '}' {
			if argIdx >= len(args) {
				return nil, fmt.Errorf("States.Format: not enough arguments")
			}
			b.WriteString(formatValue(args[argIdx]))
			argIdx++
			i++
			continue
		}
		b.WriteByte(template[i])
	}
	return b.String(), nil
}

func formatValue(v Value) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

func statesStringToJSON(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("States.StringToJson requires exactly 1 argument")
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("States.StringToJson argument must be a string")
	}
	var out Value
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func statesJSONToString(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("States.JsonToString requires exactly 1 argument")
	}
	b, err := json.Marshal(args[0])
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func statesMathRandom(args []Value) (Value, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("States.MathRandom requires start and end")
	}
	start, ok1 := toInt(args[0])
	end, ok2 := toInt(args[1])
	if !ok1 || !ok2 || end < start {
		return nil, fmt.Errorf("States.MathRandom: invalid range")
	}
	return float64(start + rand.Intn(end-start+1)), nil
}

func toInt(v Value) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	default:
		return 0, false
	}
}

// statesEval is the optional, disabled-by-default escape hatch described
// in SPEC_FULL.md 4.14: the first argument is a free-form Starlark
// expression, evaluated with the name "input" bound to the second
// argument (conventionally a path into the effective input). It is wired
// through go.starlark.net the same way the teacher's TransformExecutor
// embeds Starlark for data transforms, but scoped down to a single
// expression rather than a full script.
func statesEval(args []Value) (Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("States.Eval requires (expression, input)")
	}
	expr, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("States.Eval expression must be a string")
	}
	inputJSON, err := json.Marshal(args[1])
	if err != nil {
		return nil, err
	}
	decoded, err := starlarkjson.Module.Members["decode"].(*starlark.Builtin).CallInternal(
		nil, starlark.Tuple{starlark.String(inputJSON)}, nil)
	if err != nil {
		return nil, err
	}
	thread := &starlark.Thread{Name: "states-eval"}
	globals, err := starlark.ExecFile(thread, "eval.star", "__result__ = "+expr, starlark.StringDict{
		"input": decoded,
		"json":  starlarkjson.Module,
	})
	if err != nil {
		return nil, err
	}
	result, ok := globals["__result__"]
	if !ok {
		return nil, fmt.Errorf("States.Eval produced no result")
	}
	encoded, err := starlarkjson.Module.Members["encode"].(*starlark.Builtin).CallInternal(
		nil, starlark.Tuple{result}, nil)
	if err != nil {
		return nil, err
	}
	var out Value
	if err := json.Unmarshal([]byte(encoded.(starlark.String)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// isIntrinsicCall is a cheap shape check: does s look like
// "States.Name(...)"? Full parsing (and thus the authoritative answer)
// happens in splitCall.
func isIntrinsicCall(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "States.") && strings.HasSuffix(s, ")") && strings.Contains(s, "(")
}

// splitCall parses "States.Name(arg1, arg2, ...)" into its function name
// and raw (unevaluated) argument strings, respecting nested parens and
// single-quoted strings so commas inside them don't split arguments.
func splitCall(s string) (name string, args []string, ok bool) {
	s = strings.TrimSpace(s)
	if !isIntrinsicCall(s) {
		return "", nil, false
	}
	open := strings.IndexByte(s, '(')
	name = strings.TrimSpace(s[:open])
	body := s[open+1 : len(s)-1]

	var current strings.Builder
	depth := 0
	inQuote := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\'' && (i == 0 || body[i-1] != '\\'):
			inQuote = !inQuote
			current.WriteByte(c)
		case c == '(' && !inQuote:
			depth++
			current.WriteByte(c)
		case c == ')' && !inQuote:
			depth--
			current.WriteByte(c)
		case c == ',' && depth == 0 && !inQuote:
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	if strings.TrimSpace(current.String()) != "" || len(args) > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}
	return name, args, true
}
