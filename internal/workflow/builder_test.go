package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleTaskMachine() map[string]any {
	return map[string]any{
		"StartAt": "Step1",
		"States": map[string]any{
			"Step1": map[string]any{
				"Type":     "Task",
				"Resource": "demo.echo",
				"End":      true,
			},
		},
	}
}

func TestBuild_ValidDefinition(t *testing.T) {
	sm, result, err := Build(simpleTaskMachine())
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	require.NotNil(t, sm)
	assert.Equal(t, "Step1", sm.StartAt)
	assert.Contains(t, sm.States, "Step1")
}

func TestBuild_RetryExplicitZeroFieldsSurviveDefaulting(t *testing.T) {
	def := map[string]any{
		"StartAt": "Step1",
		"States": map[string]any{
			"Step1": map[string]any{
				"Type":     "Task",
				"Resource": "demo.echo",
				"Retry": []any{
					map[string]any{"ErrorEquals": []any{ErrTaskFailed}, "IntervalSeconds": float64(0), "MaxAttempts": float64(0)},
				},
				"End": true,
			},
		},
	}
	sm, result, err := Build(def)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	task := sm.States["Step1"].(*TaskState)
	require.Len(t, task.Retry, 1)
	assert.Equal(t, 0, task.Retry[0].IntervalSeconds)
	assert.Equal(t, 0, task.Retry[0].MaxAttempts)
	// BackoffRate/MaxDelay were omitted, so those still take defaults.
	assert.Equal(t, 2.0, task.Retry[0].BackoffRate)
	assert.Equal(t, 3600, task.Retry[0].MaxDelay)
}

func TestBuild_TaskWithNoExecutorGetsSimulatedDefault(t *testing.T) {
	sm, result, err := Build(simpleTaskMachine())
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	task := sm.States["Step1"].(*TaskState)
	require.NotNil(t, task.Executor)

	out, err := task.Executor.Execute(context.Background(), "demo.echo", map[string]any{"x": float64(1)}, nil)
	require.NoError(t, err)
	result2 := out.(map[string]any)
	assert.Equal(t, "demo.echo", result2["resource"])
	assert.True(t, result2["simulated"].(bool))
}

func TestBuild_NextAndEndBothSetIsAnError(t *testing.T) {
	def := map[string]any{
		"StartAt": "Step1",
		"States": map[string]any{
			"Step1": map[string]any{
				"Type":     "Task",
				"Resource": "demo.echo",
				"Next":     "Step2",
				"End":      true,
			},
			"Step2": map[string]any{"Type": "Succeed"},
		},
	}
	_, result, err := Build(def)
	require.Error(t, err)
	assertHasErrorCode(t, result, "NEXT_AND_END")
}

func TestBuild_NeitherNextNorEndIsAnError(t *testing.T) {
	def := map[string]any{
		"StartAt": "Step1",
		"States": map[string]any{
			"Step1": map[string]any{"Type": "Task", "Resource": "demo.echo"},
		},
	}
	_, result, err := Build(def)
	require.Error(t, err)
	assertHasErrorCode(t, result, "NO_TRANSITION")
}

func TestBuild_UnresolvedTransitionIsAnError(t *testing.T) {
	def := map[string]any{
		"StartAt": "Step1",
		"States": map[string]any{
			"Step1": map[string]any{"Type": "Task", "Resource": "demo.echo", "Next": "DoesNotExist"},
		},
	}
	_, result, err := Build(def)
	require.Error(t, err)
	assertHasErrorCode(t, result, "UNKNOWN_TRANSITION")
}

func TestBuild_FailStateRequiresErrorAndCause(t *testing.T) {
	def := map[string]any{
		"StartAt": "Boom",
		"States": map[string]any{
			"Boom": map[string]any{"Type": "Fail"},
		},
	}
	_, result, err := Build(def)
	require.Error(t, err)
	assertHasErrorCode(t, result, "MISSING_FAIL_ERROR")
	assertHasErrorCode(t, result, "MISSING_FAIL_CAUSE")
}

func TestBuild_ChoiceWithAndOrNot(t *testing.T) {
	def := map[string]any{
		"StartAt": "Decide",
		"States": map[string]any{
			"Decide": map[string]any{
				"Type": "Choice",
				"Choices": []any{
					map[string]any{
						"And": []any{
							map[string]any{"Variable": "$.age", "NumericGreaterThanEquals": float64(18)},
							map[string]any{"Not": map[string]any{"Variable": "$.country", "StringEquals": "XX"}},
						},
						"Next": "Adult",
					},
				},
				"Default": "Minor",
			},
			"Adult": map[string]any{"Type": "Succeed"},
			"Minor": map[string]any{"Type": "Succeed"},
		},
	}
	sm, result, err := Build(def)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	choice := sm.States["Decide"].(*ChoiceState)
	require.Len(t, choice.Rules, 1)
	assert.Len(t, choice.Rules[0].Predicate.And, 2)
}

func TestBuild_ChoiceWithIsStringComparator(t *testing.T) {
	def := map[string]any{
		"StartAt": "Decide",
		"States": map[string]any{
			"Decide": map[string]any{
				"Type": "Choice",
				"Choices": []any{
					map[string]any{"Variable": "$.name", "IsString": true, "Next": "Named"},
				},
				"Default": "Anonymous",
			},
			"Named":     map[string]any{"Type": "Succeed"},
			"Anonymous": map[string]any{"Type": "Succeed"},
		},
	}
	sm, result, err := Build(def)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	choice := sm.States["Decide"].(*ChoiceState)
	require.Len(t, choice.Rules, 1)
	assert.Equal(t, CompIsString, choice.Rules[0].Predicate.Comparator)
}

func TestBuild_ParallelBranchesBuildNestedMachines(t *testing.T) {
	def := map[string]any{
		"StartAt": "Fork",
		"States": map[string]any{
			"Fork": map[string]any{
				"Type": "Parallel",
				"Branches": []any{
					map[string]any{
						"StartAt": "A",
						"States": map[string]any{
							"A": map[string]any{"Type": "Succeed"},
						},
					},
					map[string]any{
						"StartAt": "B",
						"States": map[string]any{
							"B": map[string]any{"Type": "Succeed"},
						},
					},
				},
				"End": true,
			},
		},
	}
	sm, result, err := Build(def)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	parallel := sm.States["Fork"].(*ParallelState)
	assert.Len(t, parallel.Branches, 2)
}

func TestBuild_HeartbeatMustBeLessThanTimeout(t *testing.T) {
	def := map[string]any{
		"StartAt": "Step1",
		"States": map[string]any{
			"Step1": map[string]any{
				"Type":             "Task",
				"Resource":         "demo.echo",
				"TimeoutSeconds":   float64(10),
				"HeartbeatSeconds": float64(10),
				"End":              true,
			},
		},
	}
	_, result, err := Build(def)
	require.Error(t, err)
	assertHasErrorCode(t, result, "INVALID_HEARTBEAT")
}

func assertHasErrorCode(t *testing.T, result ValidationResult, code string) {
	t.Helper()
	for _, e := range result.Errors {
		if e.Code == code {
			return
		}
	}
	t.Fatalf("expected an error with code %q, got: %+v", code, result.Errors)
}
