package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/port/analysis"
	"github.com/Strob0t/deepscan-ls/internal/resilience"
)

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		raw  string
		want inspection.ErrorKind
	}{
		{"Request failed: Invalid token provided", inspection.KindInvalidToken},
		{"the access token expired yesterday", inspection.KindExpiredToken},
		{"token Suspended by admin", inspection.KindSuspendedToken},
		{"disk full", inspection.KindRemoteFailure},
		{"Invalid request", inspection.KindRemoteFailure},
		{"Token expired", inspection.KindRemoteFailure}, // case-sensitive "token"
		{"token is invalid", inspection.KindRemoteFailure},
		{"token unknown", inspection.KindRemoteFailure},
		{"", inspection.KindRemoteFailure},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ClassifyMessage(tt.raw); got != tt.want {
				t.Errorf("ClassifyMessage(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDefaultClassifier(t *testing.T) {
	const server = "https://deepscan.test"
	c := DefaultClassifier{}

	tests := []struct {
		name     string
		err      error
		wantKind inspection.ErrorKind
		wantMsg  string
	}{
		{
			name:     "structured code wins over reason",
			err:      resilience.Permanent(&analysis.RemoteError{StatusCode: 401, Reason: "nope", Code: analysis.CodeTokenExpired}),
			wantKind: inspection.KindExpiredToken,
			wantMsg:  server + "/dashboard/#view=account-settings",
		},
		{
			name:     "invalid code",
			err:      &analysis.RemoteError{StatusCode: 401, Code: analysis.CodeTokenInvalid},
			wantKind: inspection.KindInvalidToken,
			wantMsg:  "copy the correct token string",
		},
		{
			name:     "suspended code",
			err:      &analysis.RemoteError{StatusCode: 403, Code: analysis.CodeTokenSuspended},
			wantKind: inspection.KindSuspendedToken,
			wantMsg:  "team settings page",
		},
		{
			name:     "unknown code falls back to reason",
			err:      &analysis.RemoteError{StatusCode: 401, Reason: "Invalid token", Code: "OTHER"},
			wantKind: inspection.KindInvalidToken,
			wantMsg:  "not valid",
		},
		{
			name:     "generic reason passed through",
			err:      &analysis.RemoteError{StatusCode: 500, Reason: "disk full"},
			wantKind: inspection.KindRemoteFailure,
			wantMsg:  "disk full",
		},
		{
			name:     "transport error",
			err:      fmt.Errorf("post: %w", errors.New("connection refused")),
			wantKind: inspection.KindRemoteFailure,
			wantMsg:  "connection refused",
		},
		{
			name:     "timeout",
			err:      fmt.Errorf("%w after 30s", analysis.ErrTimeout),
			wantKind: inspection.KindTimeout,
			wantMsg:  "did not respond in time",
		},
		{
			name:     "open circuit",
			err:      resilience.ErrCircuitOpen,
			wantKind: inspection.KindRemoteFailure,
			wantMsg:  "unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, msg := c.Classify(tt.err, server)
			if kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", kind, tt.wantKind)
			}
			if !strings.Contains(msg, tt.wantMsg) {
				t.Errorf("message %q does not contain %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestDefaultClassifierNil(t *testing.T) {
	kind, msg := DefaultClassifier{}.Classify(nil, "")
	if kind != inspection.KindNone || msg != "" {
		t.Errorf("Classify(nil) = %v, %q", kind, msg)
	}
}

func TestTokenMessage(t *testing.T) {
	const server = "https://deepscan.test"
	tests := []struct {
		kind inspection.ErrorKind
		link string
	}{
		{inspection.KindEmptyToken, server + "/docs/deepscan/vscode#token"},
		{inspection.KindExpiredToken, server + "/dashboard/#view=account-settings"},
		{inspection.KindInvalidToken, server + "/dashboard/#view=account-settings"},
		{inspection.KindSuspendedToken, server},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			msg := TokenMessage(tt.kind, server)
			if !strings.Contains(msg, tt.link) {
				t.Errorf("TokenMessage(%v) = %q, want link %q", tt.kind, msg, tt.link)
			}
		})
	}
	if msg := TokenMessage(inspection.KindTimeout, server); msg != "" {
		t.Errorf("non-token kind should have no message, got %q", msg)
	}
}
