package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
)

const tracerName = "deepscan-ls"

// StartInspectionSpan starts a span for one inspection of uri.
func StartInspectionSpan(ctx context.Context, inspectionID, uri, filename string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "inspection",
		trace.WithAttributes(
			attribute.String("inspection.id", inspectionID),
			attribute.String("document.uri", uri),
			attribute.String("inspection.filename", filename),
		),
	)
}

// StartTokenInfoSpan starts a span for a token-info lookup.
func StartTokenInfoSpan(ctx context.Context, server string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tokeninfo",
		trace.WithAttributes(attribute.String("deepscan.server", server)),
	)
}

// EndInspectionSpan annotates span with the outcome and ends it.
func EndInspectionSpan(span trace.Span, out inspection.Outcome) {
	span.SetAttributes(
		attribute.String("inspection.outcome", out.Kind.String()),
		attribute.String("inspection.status", out.Status.String()),
		attribute.Int("inspection.diagnostics", len(out.Diagnostics)),
	)
	if out.Kind == inspection.OutcomeFailure {
		span.SetStatus(codes.Error, out.Failure.String())
	}
	span.End()
}
