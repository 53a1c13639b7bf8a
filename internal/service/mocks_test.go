package service

import (
	"context"
	"sync"
	"time"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/domain/lsp"
	"github.com/Strob0t/deepscan-ls/internal/port/analysis"
	"github.com/Strob0t/deepscan-ls/internal/port/broadcast"
	"github.com/Strob0t/deepscan-ls/internal/port/cache"
	"github.com/Strob0t/deepscan-ls/internal/port/client"
)

// Ensure mock types implement their interfaces at compile time.
var (
	_ analysis.Analyzer     = (*mockAnalyzer)(nil)
	_ client.Client         = (*mockClient)(nil)
	_ broadcast.Broadcaster = (*mockBroadcaster)(nil)
	_ cache.Cache           = (*mapCache)(nil)
	_ DocumentSource        = (*mockDocs)(nil)
)

type mockAnalyzer struct {
	mu        sync.Mutex
	alarms    []inspection.Alarm
	err       error
	requests  []analysis.Request
	info      analysis.TokenInfo
	infoErr   error
	infoCalls int
	// block, when set, is received from before Analyze returns.
	block chan struct{}
	// panicValue, when set, makes Analyze panic with it.
	panicValue any
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req analysis.Request) ([]inspection.Alarm, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	block := m.block
	alarms, err := m.alarms, m.err
	p := m.panicValue
	m.mu.Unlock()

	if p != nil {
		panic(p)
	}

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return alarms, err
}

func (m *mockAnalyzer) TokenInfo(_ context.Context, _ analysis.Endpoint) (analysis.TokenInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoCalls++
	return m.info, m.infoErr
}

func (m *mockAnalyzer) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type published struct {
	uri   string
	diags []lsp.Diagnostic
}

type shownMessage struct {
	typ lsp.MessageType
	msg string
}

type mockClient struct {
	mu          sync.Mutex
	diagnostics []published
	statuses    []inspection.StatusParams
	messages    []shownMessage
	err         error
}

func (m *mockClient) PublishDiagnostics(_ context.Context, uri string, diags []lsp.Diagnostic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diagnostics = append(m.diagnostics, published{uri: uri, diags: diags})
	return m.err
}

func (m *mockClient) SendStatus(_ context.Context, params inspection.StatusParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, params)
	return m.err
}

func (m *mockClient) ShowMessage(_ context.Context, typ lsp.MessageType, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, shownMessage{typ: typ, msg: msg})
	return m.err
}

func (m *mockClient) snapshot() ([]published, []inspection.StatusParams, []shownMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.diagnostics...),
		append([]inspection.StatusParams(nil), m.statuses...),
		append([]shownMessage(nil), m.messages...)
}

type mockBroadcaster struct {
	mu     sync.Mutex
	events []struct {
		eventType string
		payload   any
	}
}

func (m *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, struct {
		eventType string
		payload   any
	}{eventType, payload})
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type mockDocs struct {
	mu   sync.Mutex
	docs map[string]inspection.Document
}

func newMockDocs(docs ...inspection.Document) *mockDocs {
	m := &mockDocs{docs: make(map[string]inspection.Document)}
	for _, d := range docs {
		m.docs[d.URI] = d
	}
	return m
}

func (m *mockDocs) Get(uri string) (inspection.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[uri]
	return d, ok
}

func (m *mockDocs) All() []inspection.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]inspection.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	return out
}

// testSettings returns enabled settings with a token for a fake server.
func testSettings() inspection.Settings {
	return inspection.NewSettings("https://deepscan.test").WithToken("secret")
}
