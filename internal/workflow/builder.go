package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationIssue is one structured problem the builder found, grounded
// on the teacher's own ValidationIssue shape
// (internal/workflows/types.go) so a host can render build failures the
// same way it already renders Station workflow validation failures.
type ValidationIssue struct {
	Code    string
	Path    string
	Message string
}

// ValidationResult aggregates builder issues. Only Errors ever cause
// Build to fail; Warnings are informational.
type ValidationResult struct {
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

func (r *ValidationResult) addError(code, path, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationIssue{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) addWarning(code, path, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationIssue{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
}

// BuildOptions configures how Build wires each state's dependencies.
type BuildOptions struct {
	Engine              *Engine
	Executor            TaskExecutor
	AllowExpressionEval bool
	Schema              []byte
}

type BuildOption func(*BuildOptions)

func WithExecutor(executor TaskExecutor) BuildOption {
	return func(o *BuildOptions) { o.Executor = executor }
}

func WithEngine(engine *Engine) BuildOption {
	return func(o *BuildOptions) { o.Engine = engine }
}

// WithExpressionIntrinsic enables the optional States.Eval intrinsic
// (SPEC_FULL.md 4.14). Disabled by default.
func WithExpressionIntrinsic(allow bool) BuildOption {
	return func(o *BuildOptions) { o.AllowExpressionEval = allow }
}

// WithSchema enables the optional JSON Schema pre-validation pass
// (SPEC_FULL.md 4.15) before the structural checks run.
func WithSchema(schema []byte) BuildOption {
	return func(o *BuildOptions) { o.Schema = schema }
}

// Build validates and constructs a StateMachine from a parsed
// definition document (spec.md 4.13, 6). def is the already-decoded
// JSON/YAML tree -- Build never parses text itself (text loading is
// explicitly out of core scope). Every structural violation spec.md's
// invariants name (unresolved Next/Default/Catch.Next, a state with
// both Next and End, a Fail state missing Error/Cause, ...) is reported
// as a ValidationIssue and causes Build to return a DefinitionError;
// Build never panics on a malformed definition.
func Build(def map[string]any, opts ...BuildOption) (*StateMachine, ValidationResult, error) {
	options := BuildOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Engine == nil {
		options.Engine = NewEngine(nil)
	}

	sm, result := buildStateMachine(def, "/", &options)

	if len(result.Errors) > 0 {
		return nil, result, newError(ErrDefinitionError, "definition failed validation: %d error(s), first: %s", len(result.Errors), result.Errors[0].Message)
	}
	return sm, result, nil
}

// validateAgainstSchemaBytes runs def against a raw JSON Schema document.
func validateAgainstSchemaBytes(def map[string]any, schema []byte, result *ValidationResult) {
	schemaLoader := gojsonschema.NewBytesLoader(schema)
	docLoader := gojsonschema.NewGoLoader(def)
	validation, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		result.addError("SCHEMA_ERROR", "/", "schema validation failed to run: %v", err)
		return
	}
	for _, issue := range validation.Errors() {
		result.addError("SCHEMA_VIOLATION", "/"+issue.Field(), "%s", issue.Description())
	}
}

func buildStateMachine(def map[string]any, path string, options *BuildOptions) (*StateMachine, ValidationResult) {
	var result ValidationResult

	if len(options.Schema) > 0 && path == "/" {
		validateAgainstSchemaBytes(def, options.Schema, &result)
	}

	statesRaw, ok := getMap(def, "States")
	if !ok || len(statesRaw) == 0 {
		result.addError("MISSING_STATES", path+"States", "a state machine must declare at least one state")
		return nil, result
	}

	sm := &StateMachine{
		Comment: getString(def, "Comment"),
		States:  make(map[string]stateNode, len(statesRaw)),
	}
	if n, ok := getInt(def, "TimeoutSeconds"); ok {
		sm.TimeoutSeconds = n
	}

	intr := newIntrinsicEvaluator(options.AllowExpressionEval)

	for name, raw := range statesRaw {
		stateDef, ok := raw.(map[string]any)
		if !ok {
			result.addError("INVALID_STATE", fmt.Sprintf("%sStates/%s", path, name), "state definition must be an object")
			continue
		}
		node, errs := buildState(name, stateDef, fmt.Sprintf("%sStates/%s/", path, name), options, intr)
		result.Errors = append(result.Errors, errs.Errors...)
		result.Warnings = append(result.Warnings, errs.Warnings...)
		if node != nil {
			sm.States[name] = node
		}
	}

	sm.StartAt = getString(def, "StartAt")
	if sm.StartAt == "" {
		result.addError("MISSING_START_AT", path+"StartAt", "StartAt is required")
	} else if _, ok := sm.States[sm.StartAt]; !ok {
		result.addError("INVALID_START_AT", path+"StartAt", "StartAt %q does not name a declared state", sm.StartAt)
	}

	// Resolve every Next/Default/Catch.Next against the declared state
	// names, regardless of which variant declared them.
	for name, node := range sm.States {
		for _, target := range nextTargets(node) {
			if _, ok := sm.States[target]; !ok {
				result.addError("UNKNOWN_TRANSITION", fmt.Sprintf("%sStates/%s", path, name), "transitions to undeclared state %q", target)
			}
		}
	}

	if len(result.Errors) > 0 {
		return nil, result
	}
	return sm, result
}

// nextTargets collects every state name a state might transition to, so
// the builder can validate all of them in one pass regardless of
// variant (Next, Choice Rules/Default, Catch.Next).
func nextTargets(node stateNode) []string {
	var targets []string
	if next, ok := node.NextState(); ok && next != "" {
		targets = append(targets, next)
	}
	switch t := node.(type) {
	case *ChoiceState:
		for _, rule := range t.Rules {
			targets = append(targets, rule.Next)
		}
		if t.HasDefault {
			targets = append(targets, t.Default)
		}
	case *TaskState:
		for _, c := range t.Catch {
			targets = append(targets, c.Next)
		}
	case *ParallelState:
		for _, c := range t.Catch {
			targets = append(targets, c.Next)
		}
	}
	return targets
}

func buildState(name string, def map[string]any, path string, options *BuildOptions, intr *intrinsicEvaluator) (stateNode, ValidationResult) {
	var result ValidationResult

	typ := getString(def, "Type")
	next := getString(def, "Next")
	end, hasEnd := getBool(def, "End")

	// Choice transitions through its rules and Default, so like Succeed
	// and Fail it declares neither Next nor End.
	nonTerminal := typ != "Succeed" && typ != "Fail" && typ != "Choice"
	if nonTerminal {
		if next != "" && hasEnd && end {
			result.addError("NEXT_AND_END", path, "state declares both Next and End: true")
		}
		if next == "" && !(hasEnd && end) {
			result.addError("NO_TRANSITION", path, "state must declare exactly one of Next or End: true")
		}
	}

	base := baseState{StateName: name, Next: next, End: hasEnd && end}

	switch typ {
	case "Task":
		return buildTaskState(name, base, def, path, options, intr, &result)
	case "Choice":
		return buildChoiceState(name, def, path, &result)
	case "Wait":
		return buildWaitState(name, base, def, path, &result)
	case "Parallel":
		return buildParallelState(name, base, def, path, options, intr, &result)
	case "Pass":
		return buildPassState(name, base, def, path, intr, &result)
	case "Succeed":
		return &SucceedState{StateName: name, InputPath: getString(def, "InputPath"), OutputPath: getString(def, "OutputPath")}, result
	case "Fail":
		return buildFailState(name, def, path, &result)
	default:
		result.addError("UNKNOWN_TYPE", path+"Type", "unknown state Type %q", typ)
		return nil, result
	}
}

func buildTaskState(name string, base baseState, def map[string]any, path string, options *BuildOptions, intr *intrinsicEvaluator, result *ValidationResult) (stateNode, ValidationResult) {
	resource := getString(def, "Resource")
	if resource == "" {
		result.addError("MISSING_RESOURCE", path+"Resource", "Task state requires Resource")
	}

	timeout, _ := getInt(def, "TimeoutSeconds")
	heartbeat, hasHeartbeat := getInt(def, "HeartbeatSeconds")
	if hasHeartbeat && timeout > 0 && heartbeat >= timeout {
		result.addError("INVALID_HEARTBEAT", path+"HeartbeatSeconds", "HeartbeatSeconds (%d) must be less than TimeoutSeconds (%d)", heartbeat, timeout)
	}

	retry, retryErrs := buildRetryRules(def, path)
	result.Errors = append(result.Errors, retryErrs.Errors...)
	catch, catchErrs := buildCatchRules(def, path)
	result.Errors = append(result.Errors, catchErrs.Errors...)

	executor := options.Executor
	if executor == nil {
		// Without a registered executor the core still owes a definition
		// a result: synthesize the canonical simulated one rather than
		// leaving Executor nil for invoke to dereference (spec.md 4.4/6).
		executor = TaskExecutorFunc(func(_ context.Context, resource string, input Value, _ Value) (Value, error) {
			return simulatedResult(resource, input), nil
		})
	}
	state := &TaskState{
		baseState:        base,
		Resource:         resource,
		Credentials:      def["Credentials"],
		TimeoutSeconds:   timeout,
		HeartbeatSeconds: heartbeat,
		InputPath:        getString(def, "InputPath"),
		Parameters:       getRawMap(def, "Parameters"),
		ResultSelector:   getRawMap(def, "ResultSelector"),
		ResultPath:       getString(def, "ResultPath"),
		OutputPath:       getString(def, "OutputPath"),
		Retry:            retry,
		Catch:            catch,
		Executor:         executor,
		intr:             intr,
	}
	return state, *result
}

func buildChoiceState(name string, def map[string]any, path string, result *ValidationResult) (stateNode, ValidationResult) {
	choicesRaw, _ := getSlice(def, "Choices")
	state := &ChoiceState{
		StateName:  name,
		InputPath:  getString(def, "InputPath"),
		OutputPath: getString(def, "OutputPath"),
	}

	if len(choicesRaw) == 0 {
		result.addError("EMPTY_CHOICES", path+"Choices", "Choice state requires at least one rule")
	}

	for i, raw := range choicesRaw {
		ruleDef, ok := raw.(map[string]any)
		if !ok {
			result.addError("INVALID_CHOICE", fmt.Sprintf("%sChoices/%d", path, i), "choice rule must be an object")
			continue
		}
		next := getString(ruleDef, "Next")
		if next == "" {
			result.addError("MISSING_CHOICE_NEXT", fmt.Sprintf("%sChoices/%d/Next", path, i), "choice rule requires Next")
			continue
		}
		pred, err := buildPredicate(ruleDef)
		if err != nil {
			result.addError("INVALID_PREDICATE", fmt.Sprintf("%sChoices/%d", path, i), "%v", err)
			continue
		}
		state.Rules = append(state.Rules, ChoiceRule{Predicate: pred, Next: next})
	}

	if def, ok := def["Default"]; ok {
		if s, ok := def.(string); ok && s != "" {
			state.Default = s
			state.HasDefault = true
		}
	}

	return state, *result
}

var comparatorNames = []string{
	CompStringEquals, CompStringLessThan, CompStringGreaterThan,
	CompStringLessThanEquals, CompStringGreaterThanEquals,
	CompNumericEquals, CompNumericLessThan, CompNumericGreaterThan,
	CompNumericLessThanEquals, CompNumericGreaterThanEquals,
	CompBooleanEquals, CompIsPresent, CompIsNull, CompIsString, CompIsNumeric, CompIsBoolean,
}

// buildPredicate recursively parses one Choice rule body into a
// Predicate tree: And/Or/Not connectives, or exactly one leaf
// Variable+Comparator pair (spec.md 4.7).
func buildPredicate(def map[string]any) (Predicate, error) {
	if rawList, ok := getSlice(def, "And"); ok {
		children, err := buildPredicateList(rawList)
		return Predicate{And: children}, err
	}
	if rawList, ok := getSlice(def, "Or"); ok {
		children, err := buildPredicateList(rawList)
		return Predicate{Or: children}, err
	}
	if rawNot, ok := def["Not"].(map[string]any); ok {
		child, err := buildPredicate(rawNot)
		if err != nil {
			return Predicate{}, err
		}
		return Predicate{Not: &child}, nil
	}

	variable := getString(def, "Variable")
	if variable == "" {
		return Predicate{}, fmt.Errorf("choice rule leaf requires Variable")
	}
	for _, comparator := range comparatorNames {
		if raw, ok := def[comparator]; ok {
			return Predicate{Variable: variable, Comparator: comparator, Literal: raw}, nil
		}
	}
	return Predicate{}, fmt.Errorf("choice rule leaf declares no recognized comparator")
}

func buildPredicateList(raw []any) ([]Predicate, error) {
	out := make([]Predicate, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("predicate list entry must be an object")
		}
		p, err := buildPredicate(m)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func buildWaitState(name string, base baseState, def map[string]any, path string, result *ValidationResult) (stateNode, ValidationResult) {
	state := &WaitState{baseState: base}

	seconds, hasSeconds := getInt(def, "Seconds")
	timestampStr, hasTimestampStr := def["Timestamp"].(string)
	secondsPath := getString(def, "SecondsPath")
	timestampPath := getString(def, "TimestampPath")

	set := 0
	if hasSeconds {
		state.Seconds, state.HasSeconds = seconds, true
		set++
	}
	if hasTimestampStr {
		t, err := time.Parse(time.RFC3339, timestampStr)
		if err != nil {
			result.addError("INVALID_TIMESTAMP", path+"Timestamp", "Timestamp is not RFC3339: %v", err)
		} else {
			state.Timestamp, state.HasTimestamp = t, true
			set++
		}
	}
	if secondsPath != "" {
		state.SecondsPath = secondsPath
		set++
	}
	if timestampPath != "" {
		state.TimestampPath = timestampPath
		set++
	}
	if set != 1 {
		result.addError("INVALID_WAIT_CONFIG", path, "Wait state must declare exactly one of Seconds, Timestamp, SecondsPath, TimestampPath (found %d)", set)
	}

	return state, *result
}

func buildParallelState(name string, base baseState, def map[string]any, path string, options *BuildOptions, intr *intrinsicEvaluator, result *ValidationResult) (stateNode, ValidationResult) {
	branchesRaw, _ := getSlice(def, "Branches")
	if len(branchesRaw) == 0 {
		result.addError("EMPTY_BRANCHES", path+"Branches", "Parallel state requires at least one branch")
	}

	retry, retryErrs := buildRetryRules(def, path)
	result.Errors = append(result.Errors, retryErrs.Errors...)
	catch, catchErrs := buildCatchRules(def, path)
	result.Errors = append(result.Errors, catchErrs.Errors...)

	state := &ParallelState{
		baseState:      base,
		InputPath:      getString(def, "InputPath"),
		ResultSelector: getRawMap(def, "ResultSelector"),
		ResultPath:     getString(def, "ResultPath"),
		OutputPath:     getString(def, "OutputPath"),
		Retry:          retry,
		Catch:          catch,
		engine:         options.Engine,
		intr:           intr,
	}

	for i, raw := range branchesRaw {
		branchDef, ok := raw.(map[string]any)
		if !ok {
			result.addError("INVALID_BRANCH", fmt.Sprintf("%sBranches/%d", path, i), "branch must be an object")
			continue
		}
		branchSM, branchResult := buildStateMachine(branchDef, fmt.Sprintf("%sBranches/%d/", path, i), options)
		for _, e := range branchResult.Errors {
			result.Errors = append(result.Errors, e)
		}
		if branchSM != nil {
			state.Branches = append(state.Branches, branchSM)
		}
	}

	return state, *result
}

func buildPassState(name string, base baseState, def map[string]any, path string, intr *intrinsicEvaluator, result *ValidationResult) (stateNode, ValidationResult) {
	state := &PassState{
		baseState:  base,
		InputPath:  getString(def, "InputPath"),
		Parameters: getRawMap(def, "Parameters"),
		ResultPath: getString(def, "ResultPath"),
		OutputPath: getString(def, "OutputPath"),
		intr:       intr,
	}
	if v, ok := def["Result"]; ok {
		state.Result = v
		state.HasResult = true
	}
	return state, *result
}

func buildFailState(name string, def map[string]any, path string, result *ValidationResult) (stateNode, ValidationResult) {
	errName := getString(def, "Error")
	cause := getString(def, "Cause")
	if errName == "" {
		result.addError("MISSING_FAIL_ERROR", path+"Error", "Fail state requires a non-empty Error")
	}
	if cause == "" {
		result.addError("MISSING_FAIL_CAUSE", path+"Cause", "Fail state requires a non-empty Cause")
	}
	return &FailState{StateName: name, Error: errName, Cause: cause}, *result
}

func buildRetryRules(def map[string]any, path string) ([]RetryRule, ValidationResult) {
	var result ValidationResult
	raw, ok := getSlice(def, "Retry")
	if !ok {
		return nil, result
	}
	rules := make([]RetryRule, 0, len(raw))
	for i, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			result.addError("INVALID_RETRY", fmt.Sprintf("%sRetry/%d", path, i), "retry rule must be an object")
			continue
		}
		errorEquals := stringSlice(m["ErrorEquals"])
		if len(errorEquals) == 0 {
			result.addError("MISSING_RETRY_ERROR_EQUALS", fmt.Sprintf("%sRetry/%d/ErrorEquals", path, i), "retry rule requires ErrorEquals")
			continue
		}
		// Defaults apply only to a field genuinely absent from the
		// definition -- spec.md 4.5 allows IntervalSeconds, MaxAttempts
		// and MaxDelay to be explicitly 0, which must survive as 0, not
		// be promoted back to its default.
		rule := RetryRule{ErrorEquals: errorEquals, IntervalSeconds: 1, MaxAttempts: 3, BackoffRate: 2.0, MaxDelay: 3600}
		if n, ok := getInt(m, "IntervalSeconds"); ok {
			rule.IntervalSeconds = n
		}
		if n, ok := getInt(m, "MaxAttempts"); ok {
			rule.MaxAttempts = n
		}
		if f, ok := getFloat(m, "BackoffRate"); ok {
			rule.BackoffRate = f
		}
		if n, ok := getInt(m, "MaxDelay"); ok {
			rule.MaxDelay = n
		}
		rules = append(rules, rule)
	}
	return rules, result
}

func buildCatchRules(def map[string]any, path string) ([]CatchRule, ValidationResult) {
	var result ValidationResult
	raw, ok := getSlice(def, "Catch")
	if !ok {
		return nil, result
	}
	rules := make([]CatchRule, 0, len(raw))
	for i, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			result.addError("INVALID_CATCH", fmt.Sprintf("%sCatch/%d", path, i), "catch rule must be an object")
			continue
		}
		errorEquals := stringSlice(m["ErrorEquals"])
		if len(errorEquals) == 0 {
			result.addError("MISSING_CATCH_ERROR_EQUALS", fmt.Sprintf("%sCatch/%d/ErrorEquals", path, i), "catch rule requires ErrorEquals")
			continue
		}
		next := getString(m, "Next")
		if next == "" {
			result.addError("MISSING_CATCH_NEXT", fmt.Sprintf("%sCatch/%d/Next", path, i), "catch rule requires Next")
			continue
		}
		rules = append(rules, CatchRule{
			ErrorEquals: errorEquals,
			Next:        next,
			ResultPath:  getString(m, "ResultPath"),
		})
	}
	return rules, result
}

// --- small typed accessors over a decoded JSON/YAML map[string]any ---

func getString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func getBool(m map[string]any, key string) (bool, bool) {
	b, ok := m[key].(bool)
	return b, ok
}

func getInt(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

func getFloat(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func getMap(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

// getRawMap is like getMap but returns nil (not an error) when the key
// is absent, since Parameters/ResultSelector being unset is meaningful
// (pass the effective input / raw result through unchanged).
func getRawMap(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func getSlice(m map[string]any, key string) ([]any, bool) {
	v, ok := m[key].([]any)
	return v, ok
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
