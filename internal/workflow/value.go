package workflow

// Value is the dynamic JSON-shaped data the engine moves between states.
// It is always one of: nil, bool, float64, string, []any, map[string]any
// -- the same shapes encoding/json produces, so callers that decoded a
// definition or a task result with the standard library need no
// conversion before handing it to the engine.
type Value = any

// cloneValue performs a deep copy of a Value tree. Executions never share
// mutable state across history snapshots or parallel branches; every
// write goes through a fresh copy rooted here.
func cloneValue(v Value) Value {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return t
	}
}

// asObject returns v as a map[string]any, and false if v is not an object.
func asObject(v Value) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// emptyObject returns a fresh, empty JSON object.
func emptyObject() map[string]any {
	return make(map[string]any)
}

// deepMerge merges src into dst, recursing into nested objects and letting
// src win on scalar/array conflicts. Neither argument is mutated; the
// result is a new tree. This is the merge semantics ResultPath and the
// Parallel/Catch result placement rely on (spec.md 4.1, 4.3, 4.6).
func deepMerge(dst, src Value) Value {
	dstObj, dstIsObj := asObject(dst)
	srcObj, srcIsObj := asObject(src)
	if !dstIsObj || !srcIsObj {
		return cloneValue(src)
	}
	out := make(map[string]any, len(dstObj)+len(srcObj))
	for k, v := range dstObj {
		out[k] = cloneValue(v)
	}
	for k, v := range srcObj {
		if existing, ok := out[k]; ok {
			out[k] = deepMerge(existing, v)
		} else {
			out[k] = cloneValue(v)
		}
	}
	return out
}
