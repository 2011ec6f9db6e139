package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryRule_BackoffDelay(t *testing.T) {
	rule := RetryRule{IntervalSeconds: 1, BackoffRate: 2.0, MaxDelay: 5}.withDefaults()

	assert.Equal(t, time.Second, rule.backoffDelay(1))
	assert.Equal(t, 2*time.Second, rule.backoffDelay(2))
	assert.Equal(t, 4*time.Second, rule.backoffDelay(3))
	// 1 * 2^3 = 8s, but MaxDelay caps it at 5s.
	assert.Equal(t, 5*time.Second, rule.backoffDelay(4))
}

func TestErrorEqualsMatch(t *testing.T) {
	assert.True(t, errorEqualsMatch([]string{ErrAll}, "Anything.AtAll", ""))
	assert.True(t, errorEqualsMatch([]string{ErrTaskFailed}, ErrTaskFailed, "boom"))
	// States.TaskFailed is a catch-all for any non-Timeout error, including
	// ones with a different name entirely.
	assert.True(t, errorEqualsMatch([]string{ErrTaskFailed}, ErrBranchFailed, "boom"))
	assert.False(t, errorEqualsMatch([]string{ErrTaskFailed}, ErrTaskTimeout, "timed out"))
	// States.Permissions matches the error's Cause, not its Name.
	assert.True(t, errorEqualsMatch([]string{ErrPermissions}, "Custom.AccessDenied", "Permission denied for role X"))
	assert.False(t, errorEqualsMatch([]string{ErrPermissions}, "States.Permissions", "access denied"))
	assert.True(t, errorEqualsMatch([]string{"Custom.Transient"}, "Custom.TransientTimeout", ""))
	assert.False(t, errorEqualsMatch([]string{"Custom.Transient"}, "Custom.Fatal", ""))
}

func TestRunWithRetry_SucceedsAfterRetries(t *testing.T) {
	rules := []RetryRule{{ErrorEquals: []string{ErrTaskFailed}, IntervalSeconds: 0, MaxAttempts: 3, BackoffRate: 1, MaxDelay: 1}}
	attempts := 0
	result, err := runWithRetry(context.Background(), rules, func(ctx context.Context) (Value, error) {
		attempts++
		if attempts < 3 {
			return nil, newError(ErrTaskFailed, "transient failure #%d", attempts)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestRunWithRetry_ExhaustsMaxAttempts(t *testing.T) {
	rules := []RetryRule{{ErrorEquals: []string{ErrTaskFailed}, IntervalSeconds: 0, MaxAttempts: 2, BackoffRate: 1, MaxDelay: 1}}
	attempts := 0
	_, err := runWithRetry(context.Background(), rules, func(ctx context.Context) (Value, error) {
		attempts++
		return nil, newError(ErrTaskFailed, "always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts) // original attempt + 2 retries
}

func TestRunWithRetry_ExplicitZeroIntervalMeansNoDelay(t *testing.T) {
	rule := RetryRule{ErrorEquals: []string{ErrTaskFailed}, IntervalSeconds: 0, MaxAttempts: 2, BackoffRate: 2}
	start := time.Now()
	attempts := 0
	_, err := runWithRetry(context.Background(), []RetryRule{rule}, func(ctx context.Context) (Value, error) {
		attempts++
		return nil, newError(ErrTaskFailed, "always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "an explicit IntervalSeconds of 0 must not be promoted to the 1s default")
}

func TestRunWithRetry_ExplicitZeroMaxAttemptsMeansNoRetry(t *testing.T) {
	rule := RetryRule{ErrorEquals: []string{ErrTaskFailed}, MaxAttempts: 0}
	attempts := 0
	_, err := runWithRetry(context.Background(), []RetryRule{rule}, func(ctx context.Context) (Value, error) {
		attempts++
		return nil, newError(ErrTaskFailed, "always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "an explicit MaxAttempts of 0 must not be promoted to the default of 3")
}

func TestRunWithRetry_UnmatchedErrorNeverRetries(t *testing.T) {
	rules := []RetryRule{{ErrorEquals: []string{ErrTaskTimeout}, MaxAttempts: 5}}
	attempts := 0
	_, err := runWithRetry(context.Background(), rules, func(ctx context.Context) (Value, error) {
		attempts++
		return nil, newError(ErrTaskFailed, "does not match the rule")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
