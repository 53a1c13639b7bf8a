package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	cfotel "github.com/Strob0t/deepscan-ls/internal/adapter/otel"
	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/logger"
	"github.com/Strob0t/deepscan-ls/internal/pool"
	"github.com/Strob0t/deepscan-ls/internal/port/analysis"
)

// Session runs single inspections against the remote service. It never
// retries; the next save is the retry.
type Session struct {
	analyzer   analysis.Analyzer
	classifier Classifier
	pool       *pool.Pool
	metrics    *cfotel.Metrics
	now        func() time.Time
}

// NewSession creates a session. A nil classifier uses DefaultClassifier; a
// nil pool or metrics disables limiting or recording.
func NewSession(a analysis.Analyzer, c Classifier, p *pool.Pool, m *cfotel.Metrics) *Session {
	if c == nil {
		c = DefaultClassifier{}
	}
	return &Session{analyzer: a, classifier: c, pool: p, metrics: m, now: time.Now}
}

// FilenameFor returns the file name declared for doc. The service only
// looks at the extension; extra suffixes are declared as JavaScript.
func FilenameFor(doc inspection.Document, s inspection.Settings) string {
	suffix := doc.Suffix()
	if s.ExtraFileSuffixes.Has(suffix) {
		suffix = ".js"
	}
	return "demo" + suffix
}

// Run submits doc with the settings captured by the caller and converts
// whatever comes back into an outcome. It never returns a Skipped outcome.
func (s *Session) Run(ctx context.Context, doc inspection.Document, settings inspection.Settings) inspection.Outcome {
	id := uuid.NewString()
	ctx = logger.WithInspectionID(ctx, id)
	filename := FilenameFor(doc, settings)

	ctx, span := cfotel.StartInspectionSpan(ctx, id, doc.URI, filename)
	start := s.now()
	s.metrics.RecordStarted(ctx)

	out := s.run(ctx, doc, settings, filename)

	elapsed := s.now().Sub(start)
	s.metrics.RecordOutcome(ctx, out, elapsed)
	cfotel.EndInspectionSpan(span, out)
	slog.DebugContext(ctx, "inspection finished",
		"uri", doc.URI,
		"outcome", out.Kind.String(),
		"status", out.Status.String(),
		"diagnostics", len(out.Diagnostics),
		"elapsed", elapsed,
	)
	return out
}

func (s *Session) run(ctx context.Context, doc inspection.Document, settings inspection.Settings, filename string) inspection.Outcome {
	req := analysis.Request{
		Endpoint: analysis.EndpointOf(settings),
		Filename: filename,
		Content:  doc.Text,
	}

	var alarms []inspection.Alarm
	err := s.pool.Run(ctx, func() error {
		var err error
		alarms, err = s.analyzer.Analyze(ctx, req)
		return err
	})
	if err != nil {
		kind, msg := s.classifier.Classify(err, settings.ServerURL)
		slog.WarnContext(ctx, "inspection failed", "uri", doc.URI, "kind", kind.String(), "error", err)
		return inspection.Failed(kind, msg)
	}

	raw, err := inspection.Translate(alarms)
	if err != nil {
		slog.WarnContext(ctx, "dropped malformed alarms", "uri", doc.URI, "error", err)
	}
	diags, status := Process(raw, settings.IgnoredRuleCodes)
	out := inspection.Succeeded(diags)
	out.Status = status
	return out
}
