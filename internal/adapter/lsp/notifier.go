package lsp

import (
	"context"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	lspDomain "github.com/Strob0t/deepscan-ls/internal/domain/lsp"
	"github.com/Strob0t/deepscan-ls/internal/logger"
	"github.com/Strob0t/deepscan-ls/internal/port/client"
)

// MethodExitCalled tells the editor that the server is about to terminate.
// Params are [code, stack].
const MethodExitCalled = "deepscan/exitCalled"

var (
	_ client.Client      = (*Notifier)(nil)
	_ logger.MessageSink = (*Notifier)(nil)
)

// Notifier sends server-to-editor notifications over the connection.
type Notifier struct {
	conn *JSONRPCConn
}

// NewNotifier creates a notifier writing to conn.
func NewNotifier(conn *JSONRPCConn) *Notifier {
	return &Notifier{conn: conn}
}

// PublishDiagnostics implements client.Client.
func (n *Notifier) PublishDiagnostics(_ context.Context, uri string, diags []lspDomain.Diagnostic) error {
	if diags == nil {
		diags = []lspDomain.Diagnostic{}
	}
	return n.conn.Notify(lspDomain.MethodPublishDiagnostics, lspDomain.PublishDiagnosticsParams{URI: uri, Diagnostics: diags})
}

// SendStatus implements client.Client.
func (n *Notifier) SendStatus(_ context.Context, params inspection.StatusParams) error {
	return n.conn.Notify(inspection.StatusMethod, params)
}

// ShowMessage implements client.Client.
func (n *Notifier) ShowMessage(_ context.Context, typ lspDomain.MessageType, msg string) error {
	return n.conn.Notify(lspDomain.MethodShowMessage, lspDomain.ShowMessageParams{Type: typ, Message: msg})
}

// LogMessage implements logger.MessageSink.
func (n *Notifier) LogMessage(_ context.Context, typ lspDomain.MessageType, msg string) error {
	return n.conn.Notify(lspDomain.MethodLogMessage, lspDomain.LogMessageParams{Type: typ, Message: msg})
}

// ExitCalled reports an imminent exit with its code and stack.
func (n *Notifier) ExitCalled(_ context.Context, code int, stack string) error {
	return n.conn.Notify(MethodExitCalled, []any{code, stack})
}
