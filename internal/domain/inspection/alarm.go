package inspection

import (
	"errors"
	"fmt"

	"github.com/Strob0t/deepscan-ls/internal/domain/lsp"
)

// Alarm is one finding returned by the remote service.
type Alarm struct {
	Message  string `json:"message"`
	Name     string `json:"name"`
	Impact   string `json:"impact"`
	Location string `json:"location"`
}

// ToDiagnostic converts an alarm into a diagnostic. Wire positions are
// 1-based; every coordinate is shifted to 0-based and floored at 0.
func ToDiagnostic(a Alarm) (lsp.Diagnostic, error) {
	loc, err := ParseLocation(a.Location)
	if err != nil {
		return lsp.Diagnostic{}, fmt.Errorf("alarm %s: %w", a.Name, err)
	}
	return lsp.Diagnostic{
		Message:  a.Message,
		Code:     a.Name,
		Severity: SeverityOf(a.Impact),
		Source:   DiagnosticSource,
		Range: lsp.Range{
			Start: lsp.Position{Line: zeroBased(loc.StartLine), Character: zeroBased(loc.StartCh)},
			End:   lsp.Position{Line: zeroBased(loc.EndLine), Character: zeroBased(loc.EndCh)},
		},
	}, nil
}

// Translate converts alarms in order. Alarms with a malformed location are
// left out and reported in the joined error; the rest are still returned.
func Translate(alarms []Alarm) ([]lsp.Diagnostic, error) {
	diags := make([]lsp.Diagnostic, 0, len(alarms))
	var errs []error
	for _, a := range alarms {
		d, err := ToDiagnostic(a)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		diags = append(diags, d)
	}
	return diags, errors.Join(errs...)
}

func zeroBased(n int) int {
	return max(0, n-1)
}
