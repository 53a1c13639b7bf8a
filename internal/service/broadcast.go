package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/domain/lsp"
	"github.com/Strob0t/deepscan-ls/internal/port/broadcast"
	"github.com/Strob0t/deepscan-ls/internal/port/client"
)

// DocumentStatus is the last status published for a document.
type DocumentStatus struct {
	URI         string    `json:"uri"`
	State       string    `json:"state"`
	Message     string    `json:"message,omitempty"`
	Diagnostics int       `json:"diagnostics"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DiagnosticsEvent is mirrored to observers when diagnostics are replaced.
type DiagnosticsEvent struct {
	URI         string           `json:"uri"`
	Diagnostics []lsp.Diagnostic `json:"diagnostics"`
}

// StatusBroadcaster sends diagnostics and deepscan/status notifications to
// the editor and mirrors them to an optional observer.
type StatusBroadcaster struct {
	client client.Client
	mirror broadcast.Broadcaster
	now    func() time.Time

	mu     sync.RWMutex
	latest map[string]DocumentStatus
}

// NewStatusBroadcaster returns a broadcaster writing to c. mirror may be nil.
func NewStatusBroadcaster(c client.Client, mirror broadcast.Broadcaster) *StatusBroadcaster {
	return &StatusBroadcaster{
		client: c,
		mirror: mirror,
		now:    time.Now,
		latest: make(map[string]DocumentStatus),
	}
}

// Publish replaces the diagnostics of uri and sends exactly one status
// notification. A nil diags clears the document.
func (b *StatusBroadcaster) Publish(ctx context.Context, uri string, diags []lsp.Diagnostic, status inspection.StatusParams) error {
	if diags == nil {
		diags = []lsp.Diagnostic{}
	}
	if status.URI == "" {
		status.URI = uri
	}

	var errs []error
	if err := b.client.PublishDiagnostics(ctx, uri, diags); err != nil {
		errs = append(errs, fmt.Errorf("publish diagnostics: %w", err))
	}
	if err := b.client.SendStatus(ctx, status); err != nil {
		errs = append(errs, fmt.Errorf("send status: %w", err))
	}

	rec := DocumentStatus{
		URI:         uri,
		State:       status.State.String(),
		Message:     status.Message,
		Diagnostics: len(diags),
		UpdatedAt:   b.now(),
	}
	b.mu.Lock()
	b.latest[uri] = rec
	b.mu.Unlock()

	if b.mirror != nil {
		b.mirror.BroadcastEvent(ctx, broadcast.EventDiagnostics, DiagnosticsEvent{URI: uri, Diagnostics: diags})
		b.mirror.BroadcastEvent(ctx, broadcast.EventStatus, rec)
	}
	return errors.Join(errs...)
}

// Clear publishes an empty diagnostic set for uri without a status. A
// document with a remembered status is reset to none so that observers do
// not keep showing the old result.
func (b *StatusBroadcaster) Clear(ctx context.Context, uri string) error {
	diags := []lsp.Diagnostic{}
	if err := b.client.PublishDiagnostics(ctx, uri, diags); err != nil {
		return fmt.Errorf("clear diagnostics: %w", err)
	}

	rec := DocumentStatus{
		URI:       uri,
		State:     inspection.StatusNone.String(),
		UpdatedAt: b.now(),
	}
	b.mu.Lock()
	if _, ok := b.latest[uri]; ok {
		b.latest[uri] = rec
	}
	b.mu.Unlock()

	if b.mirror != nil {
		b.mirror.BroadcastEvent(ctx, broadcast.EventDiagnostics, DiagnosticsEvent{URI: uri, Diagnostics: diags})
		b.mirror.BroadcastEvent(ctx, broadcast.EventStatus, rec)
	}
	return nil
}

// Forget drops the remembered status of uri.
func (b *StatusBroadcaster) Forget(uri string) {
	b.mu.Lock()
	delete(b.latest, uri)
	b.mu.Unlock()
}

// Snapshot returns the last status of every document, ordered by URI.
func (b *StatusBroadcaster) Snapshot() []DocumentStatus {
	b.mu.RLock()
	out := make([]DocumentStatus, 0, len(b.latest))
	for _, s := range b.latest {
		out = append(out, s)
	}
	b.mu.RUnlock()
	slices.SortFunc(out, func(a, c DocumentStatus) int { return strings.Compare(a.URI, c.URI) })
	return out
}
