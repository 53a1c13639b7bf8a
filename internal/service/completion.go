package service

import "github.com/Strob0t/deepscan-ls/internal/domain/lsp"

const directiveDetail = "DeepScan directives"

var directives = []struct {
	label string
	doc   string
}{
	{"deepscan-disable", "Disable rules from the position"},
	{"deepscan-enable", "Enable rules from the position"},
	{"deepscan-disable-line", "Disable rules in the current line"},
	{"deepscan-enable-line", "Enable rules in the current line"},
}

// Directives returns the inline directives offered for completion. Data
// carries a 1-based index used by Resolve.
func Directives() []lsp.CompletionItem {
	items := make([]lsp.CompletionItem, len(directives))
	for i, d := range directives {
		items[i] = lsp.CompletionItem{Label: d.label, Kind: lsp.CompletionKindText, Data: i + 1}
	}
	return items
}

// Resolve fills in the detail and documentation of a directive item.
// Unknown items are returned unchanged.
func Resolve(item lsp.CompletionItem) lsp.CompletionItem {
	if item.Data < 1 || item.Data > len(directives) {
		return item
	}
	d := directives[item.Data-1]
	item.Detail = directiveDetail
	item.Documentation = d.doc
	return item
}
