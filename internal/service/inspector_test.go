package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/domain/lsp"
	"github.com/Strob0t/deepscan-ls/internal/port/analysis"
)

type inspectorFixture struct {
	inspector *Inspector
	analyzer  *mockAnalyzer
	client    *mockClient
	docs      *mockDocs
}

func newInspectorFixture(t *testing.T, settings inspection.Settings, docs ...inspection.Document) *inspectorFixture {
	t.Helper()
	return newInspectorFixtureWithOptions(t, InspectorOptions{Concurrency: 2}, settings, docs...)
}

func newInspectorFixtureWithOptions(t *testing.T, opts InspectorOptions, settings inspection.Settings, docs ...inspection.Document) *inspectorFixture {
	t.Helper()
	a := &mockAnalyzer{}
	c := &mockClient{}
	d := newMockDocs(docs...)
	i, err := NewInspector(InspectorDeps{
		Session:     NewSession(a, nil, nil, nil),
		Broadcaster: NewStatusBroadcaster(c, nil),
		Client:      c,
		Tokens:      NewTokenService(a, newMapCache(), time.Minute),
		Documents:   d,
	}, settings, opts)
	if err != nil {
		t.Fatalf("NewInspector: %v", err)
	}
	return &inspectorFixture{inspector: i, analyzer: a, client: c, docs: d}
}

func TestNewInspectorRequiresDeps(t *testing.T) {
	if _, err := NewInspector(InspectorDeps{}, testSettings(), InspectorOptions{}); err == nil {
		t.Error("expected error for missing dependencies")
	}
}

func TestInspectorPublishesSuccess(t *testing.T) {
	f := newInspectorFixture(t, testSettings())
	f.analyzer.alarms = []inspection.Alarm{{Message: "m", Name: "r", Impact: "Low", Location: "1:1"}}

	out := f.inspector.Inspect(context.Background(), TriggerOpen, inspection.NewDocument("file:///a.js", 1, "x"))
	if out.Kind != inspection.OutcomeSuccess {
		t.Fatalf("outcome = %+v", out)
	}

	pubs, statuses, msgs := f.client.snapshot()
	if len(pubs) != 1 || len(pubs[0].diags) != 1 || pubs[0].diags[0].Severity != lsp.SeverityWarning {
		t.Errorf("diagnostics = %+v", pubs)
	}
	if len(statuses) != 1 || statuses[0].State != inspection.StatusWarn || statuses[0].URI != "file:///a.js" {
		t.Errorf("statuses = %+v", statuses)
	}
	if len(msgs) != 0 {
		t.Errorf("unexpected messages %+v", msgs)
	}
}

func TestInspectorSkipSideEffects(t *testing.T) {
	tests := []struct {
		name         string
		settings     inspection.Settings
		doc          inspection.Document
		wantReason   inspection.SkipReason
		wantPubs     int
		wantStatuses int
	}{
		{"unsupported never inspected", testSettings(), inspection.NewDocument("file:///a.txt", 1, "x"), inspection.SkipUnsupportedSuffix, 0, 0},
		{"empty clears silently", testSettings(), inspection.NewDocument("file:///a.js", 1, "  "), inspection.SkipEmpty, 1, 0},
		{"too many lines clears silently", testSettings(), inspection.NewDocument("file:///a.js", 1, strings.Repeat("x\n", 10000)), inspection.SkipTooManyLines, 1, 0},
		{"empty token publishes status", testSettings().WithToken(""), inspection.NewDocument("file:///a.js", 1, "1\n2\n3\n4\n5"), inspection.SkipEmptyToken, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInspectorFixture(t, tt.settings)
			out := f.inspector.Inspect(context.Background(), TriggerOpen, tt.doc)
			if out.Kind != inspection.OutcomeSkipped || out.Reason != tt.wantReason {
				t.Fatalf("outcome = %+v, want skip %q", out, tt.wantReason)
			}
			pubs, statuses, _ := f.client.snapshot()
			if len(pubs) != tt.wantPubs || len(statuses) != tt.wantStatuses {
				t.Errorf("published %d diagnostics and %d statuses, want %d and %d", len(pubs), len(statuses), tt.wantPubs, tt.wantStatuses)
			}
			if f.analyzer.requestCount() != 0 {
				t.Error("skipped document must not reach the server")
			}
		})
	}
}

func TestInspectorEmptyTokenStatus(t *testing.T) {
	f := newInspectorFixture(t, testSettings().WithToken(""))
	doc := inspection.NewDocument("file:///a.js", 1, "1\n2\n3\n4\n5")

	f.inspector.Inspect(context.Background(), TriggerOpen, doc)
	f.inspector.Inspect(context.Background(), TriggerSave, doc)

	_, statuses, msgs := f.client.snapshot()
	if statuses[0].State != inspection.StatusEmptyToken {
		t.Errorf("state = %v, want emptyToken", statuses[0].State)
	}
	if !strings.Contains(statuses[0].Message, "An access token is required") {
		t.Errorf("message = %q", statuses[0].Message)
	}
	if len(msgs) != 1 {
		t.Errorf("token message should be shown once, got %d", len(msgs))
	}
}

func TestInspectorUnsupportedAfterInspection(t *testing.T) {
	f := newInspectorFixture(t, testSettings())
	ctx := context.Background()
	f.inspector.Inspect(ctx, TriggerOpen, inspection.NewDocument("file:///a.es6", 1, "x"))
	if f.analyzer.requestCount() != 0 {
		t.Fatal("unsupported suffix should not be inspected")
	}

	// tryInspect bypasses the suffix check, afterwards the document counts
	// as inspected and a later skip clears it.
	f.docs.docs["file:///a.es6"] = inspection.NewDocument("file:///a.es6", 1, "x")
	if _, err := f.inspector.TryInspect(ctx, "file:///a.es6"); err != nil {
		t.Fatal(err)
	}
	f.inspector.Inspect(ctx, TriggerSave, inspection.NewDocument("file:///a.es6", 2, "x"))

	pubs, _, _ := f.client.snapshot()
	if len(pubs) != 2 || len(pubs[1].diags) != 0 {
		t.Errorf("expected inspection then clear, got %+v", pubs)
	}
}

func TestInspectorTryInspectUnknownDocument(t *testing.T) {
	f := newInspectorFixture(t, testSettings())
	if _, err := f.inspector.TryInspect(context.Background(), "file:///missing.js"); err == nil {
		t.Error("expected error for unknown document")
	}
}

func TestInspectorTokenFailureNotifiesOnce(t *testing.T) {
	f := newInspectorFixture(t, testSettings())
	f.analyzer.err = &analysis.RemoteError{StatusCode: 401, Code: analysis.CodeTokenExpired}
	ctx := context.Background()
	doc := inspection.NewDocument("file:///a.js", 1, "x")

	f.inspector.Inspect(ctx, TriggerOpen, doc)
	f.inspector.Inspect(ctx, TriggerSave, doc)

	_, statuses, msgs := f.client.snapshot()
	if len(statuses) != 2 || statuses[0].State != inspection.StatusExpiredToken {
		t.Fatalf("statuses = %+v", statuses)
	}
	if len(msgs) != 1 || msgs[0].typ != lsp.MessageWarning {
		t.Fatalf("messages = %+v, want one warning", msgs)
	}

	f.inspector.UpdateToken(ctx, "fresh")
	f.inspector.Wait()
	f.inspector.Inspect(ctx, TriggerSave, doc)

	_, _, msgs = f.client.snapshot()
	if len(msgs) != 2 {
		t.Errorf("updateToken should re-arm the message, got %d messages", len(msgs))
	}
	if got := f.inspector.Settings().AccessToken; got != "fresh" {
		t.Errorf("token = %q", got)
	}
}

func TestInspectorGenericFailure(t *testing.T) {
	f := newInspectorFixture(t, testSettings())
	f.analyzer.err = &analysis.RemoteError{StatusCode: 500, Reason: "disk full"}

	out := f.inspector.Inspect(context.Background(), TriggerOpen, inspection.NewDocument("file:///a.js", 1, "x"))
	if out.Failure != inspection.KindRemoteFailure {
		t.Fatalf("outcome = %+v", out)
	}
	pubs, statuses, msgs := f.client.snapshot()
	if len(pubs) != 1 || len(pubs[0].diags) != 0 {
		t.Errorf("failure should clear diagnostics, got %+v", pubs)
	}
	if statuses[0].State != inspection.StatusFail || statuses[0].Message != "disk full" || statuses[0].URI != "file:///a.js" {
		t.Errorf("status = %+v", statuses[0])
	}
	if len(msgs) != 0 {
		t.Errorf("generic failures must not pop up messages, got %+v", msgs)
	}
}

func TestInspectorStaleResultDiscarded(t *testing.T) {
	f := newInspectorFixture(t, testSettings())
	f.analyzer.block = make(chan struct{})
	ctx := context.Background()
	uri := "file:///a.js"

	done := make(chan inspection.Outcome, 1)
	go func() {
		done <- f.inspector.Inspect(ctx, TriggerOpen, inspection.NewDocument(uri, 1, "old"))
	}()

	// Wait until the first request is in flight.
	deadline := time.Now().Add(5 * time.Second)
	for f.analyzer.requestCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first inspection never started")
		}
		time.Sleep(time.Millisecond)
	}

	// A newer inspection is issued and skipped while the first is in flight.
	f.inspector.Inspect(ctx, TriggerSave, inspection.NewDocument(uri, 2, ""))
	close(f.analyzer.block)

	if out := <-done; out.Kind != inspection.OutcomeStale {
		t.Fatalf("first outcome = %+v, want stale", out)
	}
	_, statuses, _ := f.client.snapshot()
	if len(statuses) != 0 {
		t.Errorf("stale result must not publish a status, got %+v", statuses)
	}
}

func TestInspectorOnClose(t *testing.T) {
	f := newInspectorFixture(t, testSettings())
	ctx := context.Background()

	f.inspector.OnClose(ctx, "file:///a.js")
	f.inspector.OnClose(ctx, "file:///a.txt")

	pubs, _, _ := f.client.snapshot()
	if len(pubs) != 1 || pubs[0].uri != "file:///a.js" {
		t.Errorf("only supported documents are cleared on close, got %+v", pubs)
	}
}

func TestInspectorUpdateSettingsReinspects(t *testing.T) {
	docs := []inspection.Document{
		inspection.NewDocument("file:///a.js", 1, "a"),
		inspection.NewDocument("file:///b.ts", 1, "b"),
		inspection.NewDocument("file:///c.txt", 1, "c"),
	}
	f := newInspectorFixture(t, testSettings(), docs...)
	ctx := context.Background()

	// Same target: nothing happens.
	f.inspector.UpdateSettings(ctx, testSettings())
	f.inspector.Wait()
	if n := f.analyzer.requestCount(); n != 0 {
		t.Fatalf("unchanged settings triggered %d requests", n)
	}

	next := testSettings()
	next.IgnoredRuleCodes = inspection.NewSet("R")
	f.inspector.UpdateSettings(ctx, next)
	f.inspector.Wait()

	if n := f.analyzer.requestCount(); n != 2 {
		t.Errorf("re-inspection sent %d requests, want 2", n)
	}
	if !f.inspector.Settings().IgnoredRuleCodes.Has("R") {
		t.Error("settings were not replaced")
	}
}

func TestInspectorRecoversAnalyzerPanics(t *testing.T) {
	panics := make(chan any, 4)
	opts := InspectorOptions{Concurrency: 2, OnPanic: func(v any) { panics <- v }}
	docs := []inspection.Document{
		inspection.NewDocument("file:///a.js", 1, "a"),
		inspection.NewDocument("file:///b.js", 1, "b"),
	}
	f := newInspectorFixtureWithOptions(t, opts, testSettings(), docs...)
	f.analyzer.panicValue = "analyzer exploded"
	ctx := context.Background()

	// Submit runs on its own goroutine.
	f.inspector.Submit(ctx, TriggerOpen, docs[0])
	f.inspector.Wait()
	if got := len(panics); got != 1 {
		t.Fatalf("panics after Submit = %d, want 1", got)
	}
	if v := <-panics; v != "analyzer exploded" {
		t.Errorf("panic value = %v", v)
	}

	// Re-inspection fans out over errgroup workers.
	next := testSettings()
	next.IgnoredRuleCodes = inspection.NewSet("R")
	f.inspector.UpdateSettings(ctx, next)
	f.inspector.Wait()
	if got := len(panics); got != 2 {
		t.Errorf("panics after re-inspection = %d, want 2", got)
	}
}

func TestInspectorDisableClearsOpenDocuments(t *testing.T) {
	f := newInspectorFixture(t, testSettings(), inspection.NewDocument("file:///a.js", 1, "a"))
	next := testSettings()
	next.Enabled = false

	f.inspector.UpdateSettings(context.Background(), next)
	f.inspector.Wait()

	pubs, statuses, _ := f.client.snapshot()
	if len(pubs) != 1 || len(pubs[0].diags) != 0 || len(statuses) != 0 {
		t.Errorf("disable should silently clear, got %+v / %+v", pubs, statuses)
	}
}

func TestInspectorSubmit(t *testing.T) {
	f := newInspectorFixture(t, testSettings())
	ctx := context.Background()
	f.inspector.OnOpen(ctx, inspection.NewDocument("file:///a.js", 1, "x"))
	f.inspector.OnSave(ctx, inspection.NewDocument("file:///b.js", 1, "x"))
	f.inspector.Wait()

	if n := f.analyzer.requestCount(); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestInspectorLimits(t *testing.T) {
	f := newInspectorFixture(t, testSettings())
	f.inspector.SetLimits(Limits{MaxLines: 2})

	out := f.inspector.Inspect(context.Background(), TriggerOpen, inspection.NewDocument("file:///a.js", 1, "1\n2\n3"))
	if out.Reason != inspection.SkipTooManyLines {
		t.Errorf("reason = %q", out.Reason)
	}
	if got := f.inspector.Limits(); got.MaxLines != 2 || got.MaxChars != DefaultLimits.MaxChars {
		t.Errorf("Limits() = %+v", got)
	}
}

func TestInspectorTokenInfo(t *testing.T) {
	ctx := context.Background()

	f := newInspectorFixture(t, testSettings())
	f.analyzer.info = analysis.TokenInfo{Name: "ci"}
	msg, err := f.inspector.TokenInfo(ctx)
	if err != nil || msg != "DeepScan access token ci never expires." {
		t.Errorf("TokenInfo() = %q, %v", msg, err)
	}

	f = newInspectorFixture(t, testSettings())
	f.analyzer.info = analysis.TokenInfo{Name: "ci", Error: "Suspended token"}
	msg, _ = f.inspector.TokenInfo(ctx)
	if !strings.Contains(msg, "was suspended") {
		t.Errorf("suspended token message = %q", msg)
	}

	f = newInspectorFixture(t, testSettings().WithToken(""))
	msg, _ = f.inspector.TokenInfo(ctx)
	if !strings.Contains(msg, "access token is required") {
		t.Errorf("empty token message = %q", msg)
	}
}
