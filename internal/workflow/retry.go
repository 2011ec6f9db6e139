package workflow

import (
	"context"
	"math"
	"strings"
	"time"
)

// RetryRule is one entry of a Task or Parallel state's Retry list
// (spec.md 4.5). Defaults match the ASL dialect: IntervalSeconds 1,
// MaxAttempts 3, BackoffRate 2.0, MaxDelay 3600.
type RetryRule struct {
	ErrorEquals     []string
	IntervalSeconds int
	MaxAttempts     int
	BackoffRate     float64
	MaxDelay        int
}

// withDefaults is a convenience for tests and other direct construction
// of a RetryRule from a Go literal, where an omitted field and an
// explicit zero are indistinguishable. The builder does NOT use this:
// it tracks field presence itself (spec.md 4.5 allows IntervalSeconds,
// MaxAttempts and MaxDelay to be explicitly 0), and only fills in a
// default for a field genuinely absent from the definition.
func (r RetryRule) withDefaults() RetryRule {
	if r.IntervalSeconds <= 0 {
		r.IntervalSeconds = 1
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 3
	}
	if r.MaxAttempts < 0 {
		r.MaxAttempts = 0
	}
	if r.BackoffRate <= 0 {
		r.BackoffRate = 2.0
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = 3600
	}
	return r
}

// matches reports whether wfErr is covered by this rule's ErrorEquals
// list, per spec.md 4.5's matching table: States.ALL matches anything;
// States.Timeout matches only its exact name; States.TaskFailed is a
// catch-all for any non-Timeout error; States.Permissions matches by a
// lowercase "permission" substring in the error's Cause, not its Name;
// any other (user-defined) entry matches by exact name or by substring
// on the Name -- the broader of the two options spec.md 9 leaves open,
// chosen so a host's own hierarchical error names ("Custom.Transient",
// "Custom.TransientTimeout") still retry under a single declared
// "Custom.Transient" entry (see DESIGN.md, open question b).
func (r RetryRule) matches(wfErr WorkflowError) bool {
	return errorEqualsMatch(r.ErrorEquals, wfErr.Name(), wfErr.Cause())
}

// errorEqualsMatch implements the ErrorEquals matching table shared by
// Retry and Catch (spec.md 4.5, 4.6).
func errorEqualsMatch(patterns []string, errName, errCause string) bool {
	for _, want := range patterns {
		switch want {
		case ErrAll:
			return true
		case ErrTaskTimeout:
			if errName == want {
				return true
			}
		case ErrTaskFailed:
			if errName != ErrTaskTimeout {
				return true
			}
		case ErrPermissions:
			if strings.Contains(strings.ToLower(errCause), "permission") {
				return true
			}
		default:
			if errName == want || strings.Contains(errName, want) {
				return true
			}
		}
	}
	return false
}

// backoffDelay computes the wait before attempt number n (1-indexed,
// counting only retries, not the original attempt):
//
//	delay = min(IntervalSeconds * BackoffRate^(n-1), MaxDelay)
//
// MaxDelay is applied as a hard cap in this implementation even though
// the upstream source the spec traces to parses but never applies it
// (spec.md 9, open question c; resolved in DESIGN.md to apply it, since
// an uncapped exponential backoff is very likely a latent bug rather
// than intended behavior).
func (r RetryRule) backoffDelay(n int) time.Duration {
	seconds := float64(r.IntervalSeconds) * math.Pow(r.BackoffRate, float64(n-1))
	if r.MaxDelay > 0 && seconds > float64(r.MaxDelay) {
		seconds = float64(r.MaxDelay)
	}
	return time.Duration(seconds * float64(time.Second))
}

// runWithRetry executes exec, and on a WorkflowError whose Name matches
// one of rules (first match wins, declared order, spec.md 4.5), waits
// the rule's backoff and retries, up to that rule's own MaxAttempts.
// Each rule tracks its own attempt counter so a Task alternating between
// two error types retries each under its own budget. A non-WorkflowError
// (a host/programming error, not part of the taxonomy) is never retried.
func runWithRetry(ctx context.Context, rules []RetryRule, exec func(context.Context) (Value, error)) (Value, error) {
	attempts := make([]int, len(rules))
	for {
		result, err := exec(ctx)
		if err == nil {
			return result, nil
		}
		wfErr, ok := err.(WorkflowError)
		if !ok {
			return result, err
		}
		idx := -1
		for i, rule := range rules {
			if rule.matches(wfErr) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return result, err
		}
		rule := rules[idx]
		attempts[idx]++
		if attempts[idx] > rule.MaxAttempts {
			return result, err
		}
		delay := rule.backoffDelay(attempts[idx])
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}
}
