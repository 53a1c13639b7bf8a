package inspection

import "github.com/Strob0t/deepscan-ls/internal/domain/lsp"

// SkipReason explains why a document was not submitted.
type SkipReason string

const (
	SkipDisabled          SkipReason = "disabled"
	SkipUnsupportedSuffix SkipReason = "unsupported-suffix"
	SkipEmpty             SkipReason = "empty"
	SkipIgnoredPattern    SkipReason = "ignored-pattern"
	SkipTooManyLines      SkipReason = "too-many-lines"
	SkipTooLarge          SkipReason = "too-large"
	SkipEmptyToken        SkipReason = "empty-token"
)

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	OutcomeSkipped OutcomeKind = iota
	OutcomeSuccess
	OutcomeFailure
	// OutcomeStale marks a result discarded because a newer inspection of
	// the same document was issued while it was in flight.
	OutcomeStale
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Outcome is the result of one inspection attempt.
type Outcome struct {
	Kind        OutcomeKind
	Reason      SkipReason
	Diagnostics []lsp.Diagnostic
	Status      StatusCode
	Failure     ErrorKind
	Message     string
}

// Skipped returns the outcome of a filtered document.
func Skipped(reason SkipReason) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason, Status: StatusNone}
}

// Succeeded returns a successful outcome; the status is derived from the
// number of diagnostics.
func Succeeded(diags []lsp.Diagnostic) Outcome {
	status := StatusOK
	if len(diags) > 0 {
		status = StatusWarn
	}
	return Outcome{Kind: OutcomeSuccess, Diagnostics: diags, Status: status}
}

// Failed returns a failed outcome of the given kind.
func Failed(kind ErrorKind, message string) Outcome {
	return Outcome{Kind: OutcomeFailure, Failure: kind, Status: kind.Status(), Message: message}
}

// Stale returns the outcome of a superseded inspection.
func Stale() Outcome {
	return Outcome{Kind: OutcomeStale}
}
