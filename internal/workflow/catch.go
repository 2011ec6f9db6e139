package workflow

// CatchRule is one entry of a Task or Parallel state's Catch list
// (spec.md 4.6). ResultPath, when empty, falls back to the owning
// state's own ResultPath.
type CatchRule struct {
	ErrorEquals []string
	Next        string
	ResultPath  string
}

// matchCatch returns the first rule (declared order) whose ErrorEquals
// covers wfErr.
func matchCatch(rules []CatchRule, wfErr WorkflowError) (CatchRule, bool) {
	for _, r := range rules {
		if errorEqualsMatch(r.ErrorEquals, wfErr.Name(), wfErr.Cause()) {
			return r, true
		}
	}
	return CatchRule{}, false
}

// catchErrorObject builds the {Error, Cause} value a matched Catch rule
// places into the data flow via ResultPath.
func catchErrorObject(err WorkflowError) Value {
	return map[string]any{
		"Error": err.Name(),
		"Cause": err.Cause(),
	}
}

// nextOverrideKey is the well-known Execution.Context key any state may
// use to tell the driver which state to run next instead of consulting
// its own static Next/End (spec.md 9's "catch-redirection via context
// slot, not exceptions"). A Catch handler uses it to redirect after a
// recovered error; a Choice state uses the same slot to report which
// rule matched, since its next state is chosen dynamically rather than
// declared statically. The driver reads and clears this key on every
// step; only the currently-executing state may set it (spec.md 5).
const nextOverrideKey = "__nextOverride"
