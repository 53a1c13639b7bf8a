// Package broadcast defines the port for mirroring status events to
// observers other than the editor, such as the debug websocket.
package broadcast

import "context"

// Event types mirrored to observers.
const (
	EventStatus      = "status"
	EventDiagnostics = "diagnostics"
)

// Broadcaster sends real-time events to all connected observers.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected observers.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
