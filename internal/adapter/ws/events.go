package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/deepscan-ls/internal/port/broadcast"
)

// Event types sent over the websocket. Live events reuse the broadcast
// port's names so observers see one vocabulary.
const (
	EventStatus      = broadcast.EventStatus
	EventDiagnostics = broadcast.EventDiagnostics
	// EventSnapshot carries the latest status of every document and is sent
	// once per connection.
	EventSnapshot = "snapshot"
)

// BroadcastEvent marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	msg, err := encode(eventType, payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}
	h.Broadcast(ctx, msg)
}

func encode(eventType string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: eventType, Payload: json.RawMessage(data)}, nil
}
