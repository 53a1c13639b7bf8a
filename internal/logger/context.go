package logger

import (
	"context"
	"log/slog"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// inspectionIDKey is the context key for the inspection correlation ID.
var inspectionIDKey = contextKey{}

// WithInspectionID returns a new context carrying the inspection ID.
func WithInspectionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, inspectionIDKey, id)
}

// InspectionID extracts the inspection ID from the context.
// Returns an empty string if none is set.
func InspectionID(ctx context.Context) string {
	id, _ := ctx.Value(inspectionIDKey).(string)
	return id
}

// contextHandler adds the inspection ID of the record's context, if any.
type contextHandler struct {
	inner slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if id := InspectionID(ctx); id != "" {
		rec.AddAttrs(slog.String("inspection_id", id))
	}
	return h.inner.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{inner: h.inner.WithGroup(name)}
}
