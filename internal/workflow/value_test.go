package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{"a": float64(1), "nested": map[string]any{"x": float64(1), "y": float64(2)}}
	src := map[string]any{"b": float64(2), "nested": map[string]any{"y": float64(3), "z": float64(4)}}

	out := deepMerge(dst, src).(map[string]any)
	assert.Equal(t, float64(1), out["a"])
	assert.Equal(t, float64(2), out["b"])
	nested := out["nested"].(map[string]any)
	assert.Equal(t, float64(1), nested["x"])
	assert.Equal(t, float64(3), nested["y"]) // src wins on conflict
	assert.Equal(t, float64(4), nested["z"])

	// originals untouched
	assert.Equal(t, float64(2), dst["nested"].(map[string]any)["y"])
}

func TestDeepMerge_NonObjectSrcReplacesEntirely(t *testing.T) {
	out := deepMerge(map[string]any{"a": float64(1)}, "replacement")
	assert.Equal(t, "replacement", out)
}

func TestCloneValue_Independence(t *testing.T) {
	original := map[string]any{"items": []any{float64(1), float64(2)}}
	clone := cloneValue(original).(map[string]any)
	clone["items"].([]any)[0] = float64(99)

	assert.Equal(t, float64(1), original["items"].([]any)[0])
}
