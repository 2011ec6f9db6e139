package workflow

import (
	"context"
	"time"
)

// WaitState pauses for a fixed duration or until a target timestamp
// before continuing (spec.md 4.8). Exactly one of Seconds, Timestamp,
// SecondsPath, TimestampPath is set -- the builder enforces that. The
// wait is cooperative: it blocks only the goroutine executing this
// state (the one running this Execution, or this Parallel branch), not
// the engine as a whole, matching spec.md 5's concurrency model.
type WaitState struct {
	baseState

	Seconds       int
	HasSeconds    bool
	Timestamp     time.Time
	HasTimestamp  bool
	SecondsPath   string
	TimestampPath string
}

func (s *WaitState) Kind() string { return "Wait" }

func (s *WaitState) Execute(ctx context.Context, _ *Execution, input Value) (Value, error) {
	duration, err := s.duration(input)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, newError(ErrInvalidWaitConfig, "wait cancelled: %v", ctx.Err())
	case <-time.After(duration):
	}
	return input, nil
}

func (s *WaitState) duration(input Value) (time.Duration, error) {
	now := time.Now()

	switch {
	case s.HasSeconds:
		return clampDuration(time.Duration(s.Seconds) * time.Second), nil

	case s.HasTimestamp:
		return clampDuration(s.Timestamp.Sub(now)), nil

	case s.SecondsPath != "":
		seconds, ok := coerceFloat(getAt(input, s.SecondsPath))
		if !ok {
			return 0, newError(ErrInvalidWaitConfig, "SecondsPath %q did not resolve to a number", s.SecondsPath)
		}
		return clampDuration(time.Duration(seconds * float64(time.Second))), nil

	case s.TimestampPath != "":
		ts, ok := getAt(input, s.TimestampPath).(string)
		if !ok {
			return 0, newError(ErrInvalidWaitConfig, "TimestampPath %q did not resolve to a string", s.TimestampPath)
		}
		target, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return 0, newError(ErrInvalidWaitConfig, "TimestampPath %q is not RFC3339: %v", s.TimestampPath, err)
		}
		return clampDuration(target.Sub(now)), nil

	default:
		return 0, newError(ErrInvalidWaitConfig, "wait state %q declares none of Seconds/Timestamp/SecondsPath/TimestampPath", s.StateName)
	}
}

func clampDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
