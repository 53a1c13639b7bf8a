package service

import (
	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/domain/lsp"
)

// Process drops diagnostics of ignored rules. The status is warn when any
// diagnostic remains and ok otherwise. The result is never nil.
func Process(raw []lsp.Diagnostic, ignored inspection.Set) ([]lsp.Diagnostic, inspection.StatusCode) {
	out := make([]lsp.Diagnostic, 0, len(raw))
	for _, d := range raw {
		if ignored.Has(d.Code) {
			continue
		}
		out = append(out, d)
	}
	if len(out) > 0 {
		return out, inspection.StatusWarn
	}
	return out, inspection.StatusOK
}
