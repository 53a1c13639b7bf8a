package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Strob0t/deepscan-ls/internal/config"
	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/domain/lsp"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.Telemetry{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestMetricsRecordWithNoopProvider(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.RecordStarted(ctx)
	m.RecordOutcome(ctx, inspection.Succeeded([]lsp.Diagnostic{{Code: "a"}}), time.Second)
	m.RecordOutcome(ctx, inspection.Skipped(inspection.SkipEmpty), 0)
	m.RecordOutcome(ctx, inspection.Stale(), 0)
	m.RecordOutcome(ctx, inspection.Failed(inspection.KindTimeout, "slow"), time.Second)

	var nilMetrics *Metrics
	nilMetrics.RecordStarted(ctx)
	nilMetrics.RecordOutcome(ctx, inspection.Stale(), 0)
}

func TestInspectionSpan(t *testing.T) {
	ctx, span := StartInspectionSpan(context.Background(), "id-1", "file:///a.js", "demo.js")
	if ctx == nil || span == nil {
		t.Fatal("expected context and span")
	}
	EndInspectionSpan(span, inspection.Failed(inspection.KindRemoteFailure, "down"))
}

func TestHTTPMiddleware(t *testing.T) {
	h := HTTPMiddleware("debug")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
}
