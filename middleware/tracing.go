package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for warden tracing.
const tracerName = "github.com/xraph/warden"

// Tracing returns middleware that wraps each operation in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop
// tracer is used and this middleware becomes a pass-through.
//
// Span attributes: warden.op, warden.actor, warden.target, warden.size.
// Conflicts are recorded as span events, not errors; only unexpected
// failures set codes.Error.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, op *Op, next Handler) error {
		ctx, span := tracer.Start(ctx, "warden."+op.Name,
			trace.WithAttributes(
				attribute.String("warden.op", op.Name),
				attribute.String("warden.actor", op.Actor),
				attribute.String("warden.target", op.Target),
				attribute.Int("warden.size", op.Size),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		switch outcome := Outcome(err); outcome {
		case "ok":
			span.SetStatus(codes.Ok, "")
		case "error":
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		default:
			span.AddEvent("refused", trace.WithAttributes(
				attribute.String("warden.outcome", outcome),
				attribute.String("error", err.Error()),
			))
		}

		return err
	}
}
