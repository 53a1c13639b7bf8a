// Package analysis defines the port to the remote DeepScan analysis service.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
)

// ErrTimeout is returned when the service does not answer within the
// request deadline.
var ErrTimeout = errors.New("analysis request timed out")

// Endpoint identifies the service and the credentials used against it.
type Endpoint struct {
	ServerURL string
	ProxyURL  string
	Token     string
	UserAgent string
}

// EndpointOf extracts the endpoint from a settings snapshot.
func EndpointOf(s inspection.Settings) Endpoint {
	return Endpoint{
		ServerURL: s.ServerURL,
		ProxyURL:  s.ProxyURL,
		Token:     s.AccessToken,
		UserAgent: s.UserAgent,
	}
}

// Request is one file submitted for inspection.
type Request struct {
	Endpoint
	Filename string
	Content  string
}

// TokenInfo describes the access token as reported by the service.
type TokenInfo struct {
	Name string
	// ExpiresAt is zero when the token never expires.
	ExpiresAt time.Time
	// Error is the service's complaint about the token, if any.
	Error string
}

// Analyzer submits documents to the remote service.
type Analyzer interface {
	// Analyze returns the alarms for req.
	Analyze(ctx context.Context, req Request) ([]inspection.Alarm, error)
	// TokenInfo describes the token configured in ep.
	TokenInfo(ctx context.Context, ep Endpoint) (TokenInfo, error)
}

// RemoteError is a failure reported by the service itself, as opposed to a
// transport failure.
type RemoteError struct {
	StatusCode int
	// Reason is the free-text reason field of the error body.
	Reason string
	// Code is the structured error code, empty when the service did not
	// send one.
	Code string
}

func (e *RemoteError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("deepscan: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("deepscan: HTTP %d: %s", e.StatusCode, e.Reason)
}

// Structured error codes understood by the classifier.
const (
	CodeTokenExpired   = "TOKEN_EXPIRED"
	CodeTokenInvalid   = "TOKEN_INVALID"
	CodeTokenSuspended = "TOKEN_SUSPENDED"
)
