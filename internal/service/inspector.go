package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	cfotel "github.com/Strob0t/deepscan-ls/internal/adapter/otel"
	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/domain/lsp"
	"github.com/Strob0t/deepscan-ls/internal/port/analysis"
	"github.com/Strob0t/deepscan-ls/internal/port/client"
)

// DefaultInspectedURIs bounds the memory of inspected documents.
const DefaultInspectedURIs = 4096

// DocumentSource yields the current text of open documents.
type DocumentSource interface {
	Get(uri string) (inspection.Document, bool)
	All() []inspection.Document
}

// InspectorDeps are the collaborators of an Inspector. Metrics may be nil.
type InspectorDeps struct {
	Session     *Session
	Broadcaster *StatusBroadcaster
	Client      client.Client
	Tokens      *TokenService
	Documents   DocumentSource
	Metrics     *cfotel.Metrics
}

// InspectorOptions tune an Inspector. Zero fields use defaults.
type InspectorOptions struct {
	Limits        Limits
	InspectedURIs int
	// Concurrency bounds the documents re-inspected at once after a
	// settings change.
	Concurrency int
	// OnPanic receives a panic recovered in a goroutine the inspector
	// started. Nil re-panics, which ends the process.
	OnPanic func(v any)
}

// Inspector reacts to editor events: it consults the gate, runs sessions
// and publishes the latest result per document.
type Inspector struct {
	deps        InspectorDeps
	concurrency int
	onPanic     func(v any)

	settings  atomic.Pointer[inspection.Settings]
	gate      atomic.Pointer[Gate]
	versions  *VersionTracker
	inspected *lru.Cache[string, struct{}]

	// updateMu serializes read-modify-write of the settings snapshot.
	updateMu sync.Mutex

	noticeMu sync.Mutex
	notified map[inspection.ErrorKind]bool

	wg  sync.WaitGroup
	now func() time.Time
}

// NewInspector creates an inspector starting from initial.
func NewInspector(deps InspectorDeps, initial inspection.Settings, opts InspectorOptions) (*Inspector, error) {
	if deps.Session == nil || deps.Broadcaster == nil || deps.Client == nil || deps.Documents == nil {
		return nil, errors.New("inspector: session, broadcaster, client and documents are required")
	}
	if opts.InspectedURIs <= 0 {
		opts.InspectedURIs = DefaultInspectedURIs
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	inspected, err := lru.New[string, struct{}](opts.InspectedURIs)
	if err != nil {
		return nil, fmt.Errorf("inspector: %w", err)
	}

	i := &Inspector{
		deps:        deps,
		concurrency: opts.Concurrency,
		onPanic:     opts.OnPanic,
		versions:    NewVersionTracker(),
		inspected:   inspected,
		notified:    make(map[inspection.ErrorKind]bool),
		now:         time.Now,
	}
	i.settings.Store(&initial)
	i.gate.Store(NewGate(opts.Limits))
	return i, nil
}

// Settings returns the current settings snapshot.
func (i *Inspector) Settings() inspection.Settings {
	return *i.settings.Load()
}

// SetLimits replaces the document size limits.
func (i *Inspector) SetLimits(l Limits) {
	i.gate.Store(NewGate(l))
}

// Limits returns the limits in force.
func (i *Inspector) Limits() Limits {
	return i.gate.Load().Limits()
}

// OnOpen inspects a freshly opened document in the background.
func (i *Inspector) OnOpen(ctx context.Context, doc inspection.Document) {
	i.Submit(ctx, TriggerOpen, doc)
}

// OnSave inspects a saved document in the background.
func (i *Inspector) OnSave(ctx context.Context, doc inspection.Document) {
	i.Submit(ctx, TriggerSave, doc)
}

// OnClose discards in-flight results for uri and clears its diagnostics
// when it is a supported or previously inspected document.
func (i *Inspector) OnClose(ctx context.Context, uri string) {
	i.versions.Forget(uri)
	s := i.Settings()
	wasInspected := i.inspected.Contains(uri)
	i.inspected.Remove(uri)
	i.deps.Broadcaster.Forget(uri)

	doc := inspection.Document{URI: uri}
	if wasInspected || s.RecognizedFileSuffixes.Has(doc.Suffix()) {
		if err := i.deps.Broadcaster.Clear(ctx, uri); err != nil {
			slog.WarnContext(ctx, "clear on close failed", "uri", uri, "error", err)
		}
	}
}

// Submit runs Inspect in a goroutine tracked by Wait.
func (i *Inspector) Submit(ctx context.Context, trigger Trigger, doc inspection.Document) {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		defer i.recoverPanic()
		i.Inspect(ctx, trigger, doc)
	}()
}

// recoverPanic must be deferred directly by the goroutine it guards.
func (i *Inspector) recoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	if i.onPanic == nil {
		panic(r)
	}
	i.onPanic(r)
}

// Wait blocks until every submitted inspection has finished.
func (i *Inspector) Wait() {
	i.wg.Wait()
}

// Inspect runs one inspection of doc against the current settings snapshot
// and publishes the result unless a newer inspection of the same document
// was issued meanwhile.
func (i *Inspector) Inspect(ctx context.Context, trigger Trigger, doc inspection.Document) inspection.Outcome {
	settings := i.Settings()
	gen := i.versions.Issue(doc.URI)

	dec := i.gate.Load().Check(trigger, doc, settings)
	if !dec.Proceed() {
		out := inspection.Skipped(dec.Reason)
		i.deps.Metrics.RecordOutcome(ctx, out, 0)
		slog.DebugContext(ctx, "inspection skipped", "uri", doc.URI, "trigger", trigger.String(), "reason", string(dec.Reason))
		return i.skip(ctx, doc.URI, gen, dec.Reason, settings)
	}

	out := i.deps.Session.Run(ctx, doc, settings)
	if ctx.Err() != nil {
		return inspection.Stale()
	}

	var notice inspection.ErrorKind
	committed := i.versions.Commit(doc.URI, gen, func() {
		i.publish(ctx, doc.URI, out)
		if out.Kind == inspection.OutcomeFailure && out.Failure.IsToken() {
			notice = out.Failure
		}
	})
	if !committed {
		stale := inspection.Stale()
		i.deps.Metrics.RecordOutcome(ctx, stale, 0)
		slog.DebugContext(ctx, "stale result discarded", "uri", doc.URI, "generation", gen)
		return stale
	}
	if notice != inspection.KindNone {
		i.notify(ctx, notice, out.Message)
	}
	return out
}

func (i *Inspector) publish(ctx context.Context, uri string, out inspection.Outcome) {
	status := inspection.StatusParams{State: out.Status, URI: uri}
	diags := out.Diagnostics
	if out.Kind == inspection.OutcomeFailure {
		status.Message = out.Message
		diags = nil
	}
	if err := i.deps.Broadcaster.Publish(ctx, uri, diags, status); err != nil {
		slog.WarnContext(ctx, "publish failed", "uri", uri, "error", err)
	}
	i.inspected.Add(uri, struct{}{})
}

func (i *Inspector) skip(ctx context.Context, uri string, gen uint64, reason inspection.SkipReason, s inspection.Settings) inspection.Outcome {
	out := inspection.Skipped(reason)

	switch reason {
	case inspection.SkipUnsupportedSuffix:
		if !i.inspected.Contains(uri) {
			return out
		}
		i.versions.Commit(uri, gen, func() { i.clear(ctx, uri) })

	case inspection.SkipEmptyToken:
		msg := TokenMessage(inspection.KindEmptyToken, s.ServerURL)
		out.Status = inspection.StatusEmptyToken
		out.Message = msg
		committed := i.versions.Commit(uri, gen, func() {
			status := inspection.StatusParams{State: inspection.StatusEmptyToken, Message: msg, URI: uri}
			if err := i.deps.Broadcaster.Publish(ctx, uri, nil, status); err != nil {
				slog.WarnContext(ctx, "publish failed", "uri", uri, "error", err)
			}
		})
		if committed {
			i.notify(ctx, inspection.KindEmptyToken, msg)
		}

	default:
		i.versions.Commit(uri, gen, func() { i.clear(ctx, uri) })
	}
	return out
}

func (i *Inspector) clear(ctx context.Context, uri string) {
	if err := i.deps.Broadcaster.Clear(ctx, uri); err != nil {
		slog.WarnContext(ctx, "clear failed", "uri", uri, "error", err)
	}
}

// notify shows a token message once per kind until the token changes.
func (i *Inspector) notify(ctx context.Context, kind inspection.ErrorKind, msg string) {
	i.noticeMu.Lock()
	if i.notified[kind] {
		i.noticeMu.Unlock()
		return
	}
	i.notified[kind] = true
	i.noticeMu.Unlock()

	typ := lsp.MessageWarning
	if kind == inspection.KindEmptyToken {
		typ = lsp.MessageInfo
	}
	if err := i.deps.Client.ShowMessage(ctx, typ, msg); err != nil {
		slog.WarnContext(ctx, "show message failed", "kind", kind.String(), "error", err)
	}
}

// UpdateSettings replaces the settings snapshot. Open documents are
// re-inspected in the background when the change affects results.
func (i *Inspector) UpdateSettings(ctx context.Context, next inspection.Settings) {
	i.updateMu.Lock()
	prev := i.settings.Swap(&next)
	i.updateMu.Unlock()

	if prev.SameTarget(next) {
		return
	}
	slog.InfoContext(ctx, "settings changed",
		"server", next.ServerURL,
		"proxy", next.ProxyURL,
		"enabled", next.Enabled,
		"file_suffixes", next.RecognizedFileSuffixes.Sorted(),
	)
	i.reinspectAsync(ctx)
}

// UpdateToken switches to token, resets the one-shot token messages and
// re-inspects open documents.
func (i *Inspector) UpdateToken(ctx context.Context, token string) {
	i.updateMu.Lock()
	prev := i.settings.Load()
	next := prev.WithToken(token)
	i.settings.Store(&next)
	i.updateMu.Unlock()

	i.noticeMu.Lock()
	clear(i.notified)
	i.noticeMu.Unlock()

	if i.deps.Tokens != nil {
		if err := i.deps.Tokens.Invalidate(ctx, analysis.EndpointOf(*prev)); err != nil {
			slog.DebugContext(ctx, "token cache invalidate failed", "error", err)
		}
	}
	slog.InfoContext(ctx, "access token updated", "has_token", next.HasToken())
	i.reinspectAsync(ctx)
}

func (i *Inspector) reinspectAsync(ctx context.Context) {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		defer i.recoverPanic()
		if err := i.ReinspectAll(ctx); err != nil {
			slog.WarnContext(ctx, "re-inspection aborted", "error", err)
		}
	}()
}

// ReinspectAll inspects every open document again, a bounded number at a
// time.
func (i *Inspector) ReinspectAll(ctx context.Context) error {
	docs := i.deps.Documents.All()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for _, doc := range docs {
		g.Go(func() error {
			defer i.recoverPanic()
			i.Inspect(gctx, TriggerConfig, doc)
			return gctx.Err()
		})
	}
	return g.Wait()
}

// TryInspect re-inspects the open document uri on explicit request,
// regardless of its suffix.
func (i *Inspector) TryInspect(ctx context.Context, uri string) (inspection.Outcome, error) {
	doc, ok := i.deps.Documents.Get(uri)
	if !ok {
		return inspection.Outcome{}, fmt.Errorf("document %s is not open", uri)
	}
	return i.Inspect(ctx, TriggerCommand, doc), nil
}

// TokenInfo describes the configured access token for the user.
func (i *Inspector) TokenInfo(ctx context.Context) (string, error) {
	if i.deps.Tokens == nil {
		return "", errors.New("token info unavailable")
	}
	return i.deps.Tokens.Report(ctx, i.Settings(), i.now())
}
