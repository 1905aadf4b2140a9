package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/amp-labs/amp-workflow/workflow"

var noopTracer = noop.NewTracerProvider().Tracer(tracerName) //nolint:gochecknoglobals

func (d *Definition[T]) tracer() trace.Tracer { //nolint:ireturn
	if !d.config.TracingEnabled {
		return noopTracer
	}

	if d.tracerProvider != nil {
		return d.tracerProvider.Tracer(tracerName)
	}

	return otel.Tracer(tracerName)
}

// startFireSpan opens the root span of one attempt. The caller ends it.
//
//nolint:spancheck
func (m *Machine[T]) startFireSpan(ctx context.Context, event string) (context.Context, trace.Span) {
	ctx, span := m.def.tracer().Start(ctx, "workflow.fire")
	span.SetAttributes(
		attribute.String("workflow", m.def.spec.Name()),
		attribute.String("event", event),
	)

	return ctx, span
}

// startPersistSpan opens a child span around the store write. The caller ends it.
//
//nolint:spancheck
func (m *Machine[T]) startPersistSpan(ctx context.Context, to string) (context.Context, trace.Span) {
	ctx, span := m.def.tracer().Start(ctx, "workflow.persist")
	span.SetAttributes(attribute.String("to_state", to))

	return ctx, span
}

func endSpan(span trace.Span, res Result, err error) {
	span.SetAttributes(attribute.String("outcome", res.Outcome.String()))

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case res.Outcome == OutcomeHalted:
		span.SetAttributes(attribute.String("halt_reason", res.Reason))
		span.SetStatus(codes.Ok, "halted")
	default:
		span.SetStatus(codes.Ok, res.Outcome.String())
	}

	span.End()
}

// traceIDs returns the trace and span IDs of ctx for log correlation.
func traceIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", ""
	}

	return sc.TraceID().String(), sc.SpanID().String()
}
