package service

import (
	"errors"
	"strings"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/port/analysis"
	"github.com/Strob0t/deepscan-ls/internal/resilience"
)

// Classifier turns a failed inspection into an actionable kind and a
// message for the user. serverURL is used to build links.
type Classifier interface {
	Classify(err error, serverURL string) (inspection.ErrorKind, string)
}

// DefaultClassifier prefers the structured error code of the service and
// falls back to sniffing the free-text reason.
type DefaultClassifier struct{}

var _ Classifier = DefaultClassifier{}

// Classify implements Classifier.
func (DefaultClassifier) Classify(err error, serverURL string) (inspection.ErrorKind, string) {
	if err == nil {
		return inspection.KindNone, ""
	}
	if errors.Is(err, analysis.ErrTimeout) {
		return inspection.KindTimeout, "DeepScan server did not respond in time. Save again to retry."
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return inspection.KindRemoteFailure, "DeepScan server is unreachable. Inspection is paused for a moment."
	}

	raw := err.Error()
	kind := inspection.KindRemoteFailure
	var remote *analysis.RemoteError
	if errors.As(err, &remote) {
		if remote.Reason != "" {
			raw = remote.Reason
		}
		kind = kindOfCode(remote.Code)
	}
	if kind == inspection.KindRemoteFailure {
		kind = ClassifyMessage(raw)
	}

	if msg := TokenMessage(kind, serverURL); msg != "" {
		return kind, msg
	}
	return kind, raw
}

func kindOfCode(code string) inspection.ErrorKind {
	switch code {
	case analysis.CodeTokenExpired:
		return inspection.KindExpiredToken
	case analysis.CodeTokenInvalid:
		return inspection.KindInvalidToken
	case analysis.CodeTokenSuspended:
		return inspection.KindSuspendedToken
	default:
		return inspection.KindRemoteFailure
	}
}

// ClassifyMessage sniffs a free-text reason. Only messages mentioning
// "token" are token failures; matching is case-sensitive.
func ClassifyMessage(raw string) inspection.ErrorKind {
	if !strings.Contains(raw, "token") {
		return inspection.KindRemoteFailure
	}
	switch {
	case strings.Contains(raw, "expired"):
		return inspection.KindExpiredToken
	case strings.Contains(raw, "Invalid"):
		return inspection.KindInvalidToken
	case strings.Contains(raw, "Suspended"):
		return inspection.KindSuspendedToken
	default:
		return inspection.KindRemoteFailure
	}
}

// TokenMessage returns the user-facing explanation of a token failure, or
// "" for other kinds.
func TokenMessage(kind inspection.ErrorKind, serverURL string) string {
	settingsURL := serverURL + "/dashboard/#view=account-settings"
	switch kind {
	case inspection.KindEmptyToken:
		return "An access token is required for using the DeepScan extension. See " +
			serverURL + "/docs/deepscan/vscode#token to generate one."
	case inspection.KindExpiredToken:
		return "Your DeepScan access token has expired. Regenerate it at " +
			settingsURL + " to continue inspecting your code with DeepScan."
	case inspection.KindInvalidToken:
		return "Your DeepScan access token is not valid. Regenerate it at " +
			settingsURL + " and make sure to copy the correct token string."
	case inspection.KindSuspendedToken:
		return "Your DeepScan access token was suspended. Visit " +
			serverURL + " to check your plan in the team settings page."
	default:
		return ""
	}
}
