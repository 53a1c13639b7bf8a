package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Strob0t/deepscan-ls/internal/domain/lsp"
)

// MessageSink receives log lines destined for the editor's output panel.
type MessageSink interface {
	LogMessage(ctx context.Context, typ lsp.MessageType, msg string) error
}

// ClientHandler tees records at or above min to the editor via window/logMessage
// while passing every record to inner.
type ClientHandler struct {
	inner slog.Handler
	sink  MessageSink
	min   slog.Level
	// attrs holds WithAttrs attributes already rendered as " key=value".
	attrs string
	// group qualifies keys of attributes added after WithGroup.
	group string
}

// NewClientHandler wraps inner.
func NewClientHandler(inner slog.Handler, sink MessageSink, min slog.Level) *ClientHandler {
	return &ClientHandler{inner: inner, sink: sink, min: min}
}

// Enabled delegates to the inner handler.
func (h *ClientHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

// Handle writes the record to inner and, if severe enough, to the editor.
func (h *ClientHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	err := h.inner.Handle(ctx, rec)
	if rec.Level >= h.min {
		// Delivery failures must not feed back into the logger.
		_ = h.sink.LogMessage(ctx, messageType(rec.Level), h.format(ctx, rec))
	}
	return err
}

// WithAttrs returns a new ClientHandler wrapping inner.WithAttrs that also
// renders attrs in editor lines.
func (h *ClientHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		appendAttr(&b, h.group, a)
	}
	c := *h
	c.inner = h.inner.WithAttrs(attrs)
	c.attrs = b.String()
	return &c
}

// WithGroup returns a new ClientHandler wrapping inner.WithGroup.
func (h *ClientHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.inner = h.inner.WithGroup(name)
	c.group = joinKey(h.group, name)
	return &c
}

func messageType(l slog.Level) lsp.MessageType {
	switch {
	case l >= slog.LevelError:
		return lsp.MessageError
	case l >= slog.LevelWarn:
		return lsp.MessageWarning
	case l >= slog.LevelInfo:
		return lsp.MessageInfo
	default:
		return lsp.MessageLog
	}
}

// format renders "[deepscan] msg key=value ..." followed by the inspection
// id carried by ctx, if any.
func (h *ClientHandler) format(ctx context.Context, rec slog.Record) string { //nolint:gocritic // slog.Record is passed by value throughout slog
	var b strings.Builder
	b.WriteString("[deepscan] ")
	b.WriteString(rec.Message)
	b.WriteString(h.attrs)
	rec.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.group, a)
		return true
	})
	if id := InspectionID(ctx); id != "" {
		fmt.Fprintf(&b, " inspection_id=%s", id)
	}
	return b.String()
}

func appendAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		// An unnamed group is inlined.
		prefix := group
		if a.Key != "" {
			prefix = joinKey(group, a.Key)
		}
		for _, sub := range a.Value.Group() {
			appendAttr(b, prefix, sub)
		}
		return
	}
	fmt.Fprintf(b, " %s=%v", joinKey(group, a.Key), a.Value.Any())
}

func joinKey(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}
