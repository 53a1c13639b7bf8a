// Package lsp implements the language-server side of the Language Server
// Protocol: JSON-RPC 2.0 over stdio, the open-document store and the
// dispatch of editor requests to the inspection service.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/Strob0t/deepscan-ls/internal/config"
	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	lspDomain "github.com/Strob0t/deepscan-ls/internal/domain/lsp"
	"github.com/Strob0t/deepscan-ls/internal/service"
)

// Commands handled through workspace/executeCommand.
const (
	CommandTryInspect  = "deepscan.tryInspect"
	CommandUpdateToken = "deepscan.updateToken"
	CommandTokenInfo   = "deepscan.tokenInfo"
)

// ServerName is reported in the initialize result.
const ServerName = "deepscan-ls"

// initOptions are the initializationOptions sent by the editor extension.
type initOptions struct {
	Server              *string  `json:"server"`
	Proxy               *string  `json:"proxy"`
	DefaultFileSuffixes []string `json:"DEFAULT_FILE_SUFFIXES"`
	FileSuffixes        []string `json:"fileSuffixes"`
	UserAgent           *string  `json:"userAgent"`
	Token               *string  `json:"token"`
}

// editorSettings is the deepscan section of workspace/didChangeConfiguration.
type editorSettings struct {
	DeepScan struct {
		Enable         *bool    `json:"enable"`
		Server         *string  `json:"server"`
		Proxy          *string  `json:"proxy"`
		IgnoreRules    []string `json:"ignoreRules"`
		IgnorePatterns []string `json:"ignorePatterns"`
		FileSuffixes   []string `json:"fileSuffixes"`
	} `json:"deepscan"`
}

// Server dispatches editor messages to the inspector.
type Server struct {
	conn      *JSONRPCConn
	notifier  *Notifier
	docs      *Documents
	inspector *service.Inspector
	version   string

	mu          sync.Mutex
	base        inspection.Settings
	patch       service.SettingsPatch
	token       *string
	initialized bool
	shutdown    bool
	exitCode    int

	wg      sync.WaitGroup
	onPanic func(v any)
}

// NewServer creates a server. base holds the settings derived from the
// configuration file; editor-pushed values are layered on top of it.
func NewServer(conn *JSONRPCConn, notifier *Notifier, docs *Documents, inspector *service.Inspector, base inspection.Settings, version string) *Server {
	return &Server{
		conn:      conn,
		notifier:  notifier,
		docs:      docs,
		inspector: inspector,
		version:   version,
		base:      base,
		exitCode:  1,
	}
}

// Run reads and dispatches messages until the editor sends exit, the
// stream ends or ctx is cancelled. A clean exit returns nil.
func (s *Server) Run(ctx context.Context) error {
	defer s.wg.Wait()

	done := make(chan struct{})
	defer close(done)
	msgs := make(chan *JSONRPCMessage)
	errc := make(chan error, 1)
	go s.readLoop(done, msgs, errc)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			if errors.Is(err, io.EOF) {
				slog.Info("editor closed the connection")
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		case msg := <-msgs:
			if msg.Method == lspDomain.MethodExit {
				s.mu.Lock()
				if s.shutdown {
					s.exitCode = 0
				}
				s.mu.Unlock()
				return nil
			}
			s.dispatch(ctx, msg)
		}
	}
}

// readLoop feeds messages to Run. Frames that are not valid JSON are
// answered with a parse error; the stream itself is still in sync.
func (s *Server) readLoop(done <-chan struct{}, msgs chan<- *JSONRPCMessage, errc chan<- error) {
	for {
		msg, err := s.conn.ReadMessage()
		if err != nil {
			var rpcErr *JSONRPCError
			if errors.As(err, &rpcErr) {
				s.respondError(nil, rpcErr.Code, rpcErr.Message)
				continue
			}
			errc <- err
			return
		}
		select {
		case msgs <- msg:
		case <-done:
			return
		}
	}
}

// SetPanicHandler installs fn to receive panics recovered in command
// goroutines. Without a handler such a panic ends the process. Call it
// before Run.
func (s *Server) SetPanicHandler(fn func(v any)) {
	s.onPanic = fn
}

// recoverPanic must be deferred directly by the goroutine it guards.
func (s *Server) recoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	if s.onPanic == nil {
		panic(r)
	}
	s.onPanic(r)
}

// ExitCode is 0 after shutdown followed by exit and 1 otherwise.
func (s *Server) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

func (s *Server) dispatch(ctx context.Context, msg *JSONRPCMessage) {
	isRequest := !msg.IsNotification()

	s.mu.Lock()
	initialized, shutdown := s.initialized, s.shutdown
	s.mu.Unlock()

	if msg.Method != lspDomain.MethodInitialize && !initialized {
		if isRequest {
			s.respondError(msg.ID, CodeServerNotInitialized, "server not initialized")
		}
		return
	}
	if msg.Method == lspDomain.MethodInitialize && initialized {
		s.respondError(msg.ID, CodeInvalidRequest, "server already initialized")
		return
	}
	if shutdown && isRequest {
		s.respondError(msg.ID, CodeInvalidRequest, "server is shutting down")
		return
	}

	switch msg.Method {
	case lspDomain.MethodInitialize:
		s.handleInitialize(ctx, msg)
	case lspDomain.MethodInitialized, lspDomain.MethodCancelRequest, lspDomain.MethodSetTrace:
	case lspDomain.MethodShutdown:
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		s.respond(msg.ID, nil)
	case lspDomain.MethodDidOpen:
		s.handleDidOpen(ctx, msg.Params)
	case lspDomain.MethodDidChange:
		s.handleDidChange(msg.Params)
	case lspDomain.MethodDidSave:
		s.handleDidSave(ctx, msg.Params)
	case lspDomain.MethodDidClose:
		s.handleDidClose(ctx, msg.Params)
	case lspDomain.MethodDidChangeConfig:
		s.handleDidChangeConfiguration(ctx, msg.Params)
	case lspDomain.MethodCompletion:
		s.respond(msg.ID, service.Directives())
	case lspDomain.MethodCompletionResolve:
		s.handleCompletionResolve(msg)
	case lspDomain.MethodExecuteCommand:
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.recoverPanic()
			s.handleExecuteCommand(ctx, msg)
		}()
	default:
		if isRequest {
			s.respondError(msg.ID, CodeMethodNotFound, "method not found: "+msg.Method)
			return
		}
		slog.Debug("lsp notification ignored", "method", msg.Method)
	}
}

func (s *Server) respond(id json.RawMessage, result any) {
	if err := s.conn.Respond(id, result); err != nil {
		slog.Warn("lsp: respond failed", "error", err)
	}
}

func (s *Server) respondError(id json.RawMessage, code int, message string) {
	if err := s.conn.RespondError(id, code, message); err != nil {
		slog.Warn("lsp: respond failed", "error", err)
	}
}

func (s *Server) handleInitialize(ctx context.Context, msg *JSONRPCMessage) {
	var params lspDomain.InitializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.respondError(msg.ID, CodeInvalidParams, err.Error())
			return
		}
	}
	var opts initOptions
	if len(params.InitializationOptions) > 0 && string(params.InitializationOptions) != "null" {
		if err := json.Unmarshal(params.InitializationOptions, &opts); err != nil {
			s.respondError(msg.ID, CodeInvalidParams, "initializationOptions: "+err.Error())
			return
		}
	}

	patch := service.SettingsPatch{
		ServerURL:       opts.Server,
		ProxyURL:        opts.Proxy,
		UserAgent:       opts.UserAgent,
		DefaultSuffixes: opts.DefaultFileSuffixes,
		FileSuffixes:    opts.FileSuffixes,
	}
	if params.RootURI != "" {
		root := inspection.URIPath(params.RootURI)
		patch.WorkspaceRoot = &root
	}

	s.mu.Lock()
	s.initialized = true
	s.patch = s.patch.Merge(patch)
	if opts.Token != nil {
		s.token = opts.Token
	}
	settings := s.composeLocked()
	s.mu.Unlock()

	s.inspector.UpdateSettings(ctx, settings)

	line := fmt.Sprintf("Server: %s (%s)", settings.ServerURL, settings.UserAgent)
	slog.Info(line)
	if err := s.notifier.LogMessage(ctx, lspDomain.MessageInfo, line); err != nil {
		slog.Warn("lsp: log message failed", "error", err)
	}

	s.respond(msg.ID, lspDomain.InitializeResult{
		Capabilities: lspDomain.ServerCapabilities{
			TextDocumentSync: lspDomain.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    lspDomain.SyncFull,
				Save:      &lspDomain.SaveOptions{IncludeText: true},
			},
			ExecuteCommandProvider: lspDomain.ExecuteCommandOptions{
				Commands: []string{CommandTryInspect, CommandUpdateToken, CommandTokenInfo},
			},
			CompletionProvider: lspDomain.CompletionOptions{ResolveProvider: true},
		},
		ServerInfo: lspDomain.ServerInfo{Name: ServerName, Version: s.version},
	})
}

// composeLocked layers the editor patch and token over the base settings.
func (s *Server) composeLocked() inspection.Settings {
	settings := s.patch.Apply(s.base)
	if s.token != nil {
		settings = settings.WithToken(*s.token)
	}
	return settings
}

// SetBase replaces the settings derived from the configuration file, for
// example after the file changed on disk.
func (s *Server) SetBase(ctx context.Context, base inspection.Settings) {
	s.mu.Lock()
	s.base = base
	settings := s.composeLocked()
	s.mu.Unlock()
	s.inspector.UpdateSettings(ctx, settings)
}

// SetBaseFromConfig is SetBase for a loaded configuration.
func (s *Server) SetBaseFromConfig(ctx context.Context, cfg *config.Config) {
	s.inspector.SetLimits(service.Limits{MaxLines: cfg.Inspection.MaxLines, MaxChars: cfg.Inspection.MaxChars})
	s.SetBase(ctx, service.SettingsFromConfig(cfg.DeepScan))
}

func (s *Server) handleDidOpen(ctx context.Context, raw json.RawMessage) {
	var p lspDomain.DidOpenTextDocumentParams
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Warn("lsp: bad didOpen params", "error", err)
		return
	}
	doc := s.docs.Open(p.TextDocument)
	s.inspector.OnOpen(ctx, doc)
}

func (s *Server) handleDidChange(raw json.RawMessage) {
	var p lspDomain.DidChangeTextDocumentParams
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Warn("lsp: bad didChange params", "error", err)
		return
	}
	if _, ok := s.docs.Change(p); !ok {
		slog.Debug("lsp: change ignored", "uri", p.TextDocument.URI)
	}
}

func (s *Server) handleDidSave(ctx context.Context, raw json.RawMessage) {
	var p lspDomain.DidSaveTextDocumentParams
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Warn("lsp: bad didSave params", "error", err)
		return
	}
	doc, ok := s.docs.Save(p.TextDocument.URI, p.Text)
	if !ok {
		slog.Debug("lsp: save of unknown document", "uri", p.TextDocument.URI)
		return
	}
	s.inspector.OnSave(ctx, doc)
}

func (s *Server) handleDidClose(ctx context.Context, raw json.RawMessage) {
	var p lspDomain.DidCloseTextDocumentParams
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Warn("lsp: bad didClose params", "error", err)
		return
	}
	s.docs.Close(p.TextDocument.URI)
	s.inspector.OnClose(ctx, p.TextDocument.URI)
}

func (s *Server) handleDidChangeConfiguration(ctx context.Context, raw json.RawMessage) {
	var p lspDomain.DidChangeConfigurationParams
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Warn("lsp: bad didChangeConfiguration params", "error", err)
		return
	}
	var es editorSettings
	if len(p.Settings) > 0 && string(p.Settings) != "null" {
		if err := json.Unmarshal(p.Settings, &es); err != nil {
			slog.Warn("lsp: bad deepscan settings", "error", err)
			return
		}
	}

	d := es.DeepScan
	s.mu.Lock()
	s.patch = s.patch.Merge(service.SettingsPatch{
		Enabled:        d.Enable,
		ServerURL:      d.Server,
		ProxyURL:       d.Proxy,
		IgnoreRules:    d.IgnoreRules,
		IgnorePatterns: d.IgnorePatterns,
		FileSuffixes:   d.FileSuffixes,
	})
	settings := s.composeLocked()
	s.mu.Unlock()

	s.inspector.UpdateSettings(ctx, settings)
}

func (s *Server) handleCompletionResolve(msg *JSONRPCMessage) {
	var item lspDomain.CompletionItem
	if err := json.Unmarshal(msg.Params, &item); err != nil {
		s.respondError(msg.ID, CodeInvalidParams, err.Error())
		return
	}
	s.respond(msg.ID, service.Resolve(item))
}

func (s *Server) handleExecuteCommand(ctx context.Context, msg *JSONRPCMessage) {
	var p lspDomain.ExecuteCommandParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		s.respondError(msg.ID, CodeInvalidParams, err.Error())
		return
	}

	switch p.Command {
	case CommandTryInspect:
		uri, err := commandURI(p.Arguments)
		if err != nil {
			s.respondError(msg.ID, CodeInvalidParams, err.Error())
			return
		}
		if _, err := s.inspector.TryInspect(ctx, uri); err != nil {
			s.respondError(msg.ID, CodeInvalidParams, err.Error())
			return
		}
		s.respond(msg.ID, nil)

	case CommandUpdateToken:
		var token string
		if len(p.Arguments) > 0 {
			if err := json.Unmarshal(p.Arguments[0], &token); err != nil {
				s.respondError(msg.ID, CodeInvalidParams, "token must be a string")
				return
			}
		}
		s.mu.Lock()
		s.token = &token
		s.mu.Unlock()
		s.inspector.UpdateToken(ctx, token)
		s.respond(msg.ID, nil)

	case CommandTokenInfo:
		text, err := s.inspector.TokenInfo(ctx)
		if err != nil {
			slog.WarnContext(ctx, "token info failed", "error", err)
			s.respondError(msg.ID, CodeInternalError, err.Error())
			return
		}
		if err := s.notifier.ShowMessage(ctx, lspDomain.MessageInfo, text); err != nil {
			slog.Warn("lsp: show message failed", "error", err)
		}
		s.respond(msg.ID, text)

	default:
		s.respondError(msg.ID, CodeInvalidParams, "unknown command: "+p.Command)
	}
}

// commandURI accepts either a document identifier or a bare URI string.
func commandURI(args []json.RawMessage) (string, error) {
	if len(args) == 0 {
		return "", errors.New("missing document argument")
	}
	var id lspDomain.VersionedTextDocumentIdentifier
	if err := json.Unmarshal(args[0], &id); err == nil && id.URI != "" {
		return id.URI, nil
	}
	var uri string
	if err := json.Unmarshal(args[0], &uri); err == nil && strings.TrimSpace(uri) != "" {
		return uri, nil
	}
	return "", errors.New("document argument must be a URI or a text document identifier")
}
