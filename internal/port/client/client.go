// Package client defines the port to the editor connected to the server.
package client

import (
	"context"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/domain/lsp"
)

// Client is the editor side of the language-server connection.
type Client interface {
	// PublishDiagnostics replaces every diagnostic of uri with diags.
	PublishDiagnostics(ctx context.Context, uri string, diags []lsp.Diagnostic) error
	// SendStatus sends a deepscan/status notification.
	SendStatus(ctx context.Context, params inspection.StatusParams) error
	// ShowMessage pops a message up in the editor.
	ShowMessage(ctx context.Context, typ lsp.MessageType, message string) error
}
