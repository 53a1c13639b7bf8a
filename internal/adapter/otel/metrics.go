package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
)

const meterName = "deepscan-ls"

// Metrics holds the inspection metric instruments.
type Metrics struct {
	InspectionsStarted   metric.Int64Counter
	InspectionsCompleted metric.Int64Counter
	InspectionsSkipped   metric.Int64Counter
	StaleDiscarded       metric.Int64Counter
	InspectionDuration   metric.Float64Histogram
	DiagnosticsPublished metric.Int64Counter
}

// NewMetrics creates all metric instruments from the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.InspectionsStarted, err = meter.Int64Counter("deepscan.inspections.started",
		metric.WithDescription("Number of inspections sent to the DeepScan server"))
	if err != nil {
		return nil, err
	}

	m.InspectionsCompleted, err = meter.Int64Counter("deepscan.inspections.completed",
		metric.WithDescription("Number of inspections that returned, by outcome and status"))
	if err != nil {
		return nil, err
	}

	m.InspectionsSkipped, err = meter.Int64Counter("deepscan.inspections.skipped",
		metric.WithDescription("Number of documents filtered out before submission"))
	if err != nil {
		return nil, err
	}

	m.StaleDiscarded, err = meter.Int64Counter("deepscan.inspections.stale",
		metric.WithDescription("Number of results discarded because a newer inspection was issued"))
	if err != nil {
		return nil, err
	}

	m.InspectionDuration, err = meter.Float64Histogram("deepscan.inspection.duration_seconds",
		metric.WithDescription("Round trip time of one inspection"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.DiagnosticsPublished, err = meter.Int64Counter("deepscan.diagnostics.published",
		metric.WithDescription("Number of diagnostics published to the editor"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordStarted counts an inspection submitted to the server.
func (m *Metrics) RecordStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.InspectionsStarted.Add(ctx, 1)
}

// RecordOutcome counts the outcome of one inspection attempt. elapsed is
// ignored for skips.
func (m *Metrics) RecordOutcome(ctx context.Context, out inspection.Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	switch out.Kind {
	case inspection.OutcomeSkipped:
		m.InspectionsSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(out.Reason))))
	case inspection.OutcomeStale:
		m.StaleDiscarded.Add(ctx, 1)
	default:
		attrs := metric.WithAttributes(
			attribute.String("outcome", out.Kind.String()),
			attribute.String("status", out.Status.String()),
			attribute.String("failure", out.Failure.String()),
		)
		m.InspectionsCompleted.Add(ctx, 1, attrs)
		m.InspectionDuration.Record(ctx, elapsed.Seconds(), attrs)
		m.DiagnosticsPublished.Add(ctx, int64(len(out.Diagnostics)))
	}
}
