package inspection

import "github.com/Strob0t/deepscan-ls/internal/domain/lsp"

// Impact labels used by the remote service.
const (
	ImpactLow    = "Low"
	ImpactMedium = "Medium"
	ImpactHigh   = "High"
)

// SeverityOf maps a remote impact label to a diagnostic severity.
func SeverityOf(impact string) lsp.DiagnosticSeverity {
	switch impact {
	case ImpactLow:
		return lsp.SeverityWarning
	case ImpactMedium, ImpactHigh:
		return lsp.SeverityError
	default:
		return lsp.SeverityInfo
	}
}
