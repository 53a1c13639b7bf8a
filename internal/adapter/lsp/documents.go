package lsp

import (
	"slices"
	"strings"
	"sync"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	lspDomain "github.com/Strob0t/deepscan-ls/internal/domain/lsp"
	"github.com/Strob0t/deepscan-ls/internal/service"
)

var _ service.DocumentSource = (*Documents)(nil)

// Documents keeps the text of every open document under full sync.
type Documents struct {
	mu   sync.RWMutex
	docs map[string]inspection.Document
}

// NewDocuments creates an empty store.
func NewDocuments() *Documents {
	return &Documents{docs: make(map[string]inspection.Document)}
}

// Open records a newly opened document.
func (d *Documents) Open(item lspDomain.TextDocumentItem) inspection.Document {
	doc := inspection.NewDocument(item.URI, item.Version, item.Text)
	d.mu.Lock()
	d.docs[item.URI] = doc
	d.mu.Unlock()
	return doc
}

// Change applies a full-text change. Changes for unknown documents and
// incremental changes are ignored.
func (d *Documents) Change(p lspDomain.DidChangeTextDocumentParams) (inspection.Document, bool) {
	if len(p.ContentChanges) == 0 {
		return inspection.Document{}, false
	}
	last := p.ContentChanges[len(p.ContentChanges)-1]
	if last.Range != nil {
		return inspection.Document{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.docs[p.TextDocument.URI]; !ok {
		return inspection.Document{}, false
	}
	doc := inspection.NewDocument(p.TextDocument.URI, p.TextDocument.Version, last.Text)
	d.docs[doc.URI] = doc
	return doc, true
}

// Save returns the saved document, updating its text when the editor sent
// it along.
func (d *Documents) Save(uri string, text *string) (inspection.Document, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.docs[uri]
	if !ok {
		return inspection.Document{}, false
	}
	if text != nil && *text != doc.Text {
		doc = inspection.NewDocument(uri, doc.Version, *text)
		d.docs[uri] = doc
	}
	return doc, true
}

// Close forgets uri and reports whether it was open.
func (d *Documents) Close(uri string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.docs[uri]
	delete(d.docs, uri)
	return ok
}

// Get returns the open document uri.
func (d *Documents) Get(uri string) (inspection.Document, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	doc, ok := d.docs[uri]
	return doc, ok
}

// All returns every open document ordered by URI.
func (d *Documents) All() []inspection.Document {
	d.mu.RLock()
	out := make([]inspection.Document, 0, len(d.docs))
	for _, doc := range d.docs {
		out = append(out, doc)
	}
	d.mu.RUnlock()
	slices.SortFunc(out, func(a, b inspection.Document) int { return strings.Compare(a.URI, b.URI) })
	return out
}

// Len returns the number of open documents.
func (d *Documents) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs)
}
