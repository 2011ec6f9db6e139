package workflow

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "workflow.engine"
	meterName  = "workflow.engine"
)

// Telemetry is the optional observability hook described in
// SPEC_FULL.md 4.16: a per-state trace span plus step counters and a
// duration histogram, grounded on the teacher's WorkflowTelemetry
// (internal/workflows/runtime/telemetry.go) and scoped down to what the
// Execution Driver actually emits. It never affects control flow; an
// Engine with no Telemetry configured behaves identically except for
// the absence of spans/metrics.
type Telemetry struct {
	tracer trace.Tracer
	meter  metric.Meter

	stepCounter    metric.Int64Counter
	stepDuration   metric.Float64Histogram
	failureCounter metric.Int64Counter
}

// NewTelemetry builds a Telemetry instance against the global otel
// providers. Callers that have not configured an otel SDK still get a
// working no-op tracer/meter (the otel API's own default), so wiring
// this in is always safe.
func NewTelemetry() (*Telemetry, error) {
	t := &Telemetry{
		tracer: otel.Tracer(tracerName),
		meter:  otel.Meter(meterName),
	}

	var err error
	t.stepCounter, err = t.meter.Int64Counter(
		"workflow_steps_total",
		metric.WithDescription("Total number of state steps executed"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: step counter: %w", err)
	}

	t.stepDuration, err = t.meter.Float64Histogram(
		"workflow_step_duration_seconds",
		metric.WithDescription("Duration of individual state steps"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: step duration: %w", err)
	}

	t.failureCounter, err = t.meter.Int64Counter(
		"workflow_step_failures_total",
		metric.WithDescription("Total number of state steps that returned an error"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failure counter: %w", err)
	}

	return t, nil
}

// startSpan begins a span for one state step. The returned end function
// closes it out, recording the outcome and duration.
func (t *Telemetry) startSpan(ctx context.Context, executionName, stateName, stateType string) (context.Context, func(err error, seconds float64)) {
	if t == nil {
		return ctx, func(error, float64) {}
	}

	spanCtx, span := t.tracer.Start(ctx, stateName,
		trace.WithAttributes(
			attribute.String("workflow.execution", executionName),
			attribute.String("workflow.state.name", stateName),
			attribute.String("workflow.state.type", stateType),
		),
	)

	attrs := metric.WithAttributes(attribute.String("workflow.state.type", stateType))

	return spanCtx, func(err error, seconds float64) {
		defer span.End()
		t.stepCounter.Add(ctx, 1, attrs)
		t.stepDuration.Record(ctx, seconds, attrs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			t.failureCounter.Add(ctx, 1, attrs)
		}
	}
}
