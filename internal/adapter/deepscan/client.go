// Package deepscan provides an HTTP client for the DeepScan analysis API
// used by editor integrations.
package deepscan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/port/analysis"
	"github.com/Strob0t/deepscan-ls/internal/resilience"
)

const (
	analysisPath  = "/api/vscode/analysis"
	tokenInfoPath = "/api/vscode/tokeninfo"

	// DefaultTimeout bounds one request when none is configured.
	DefaultTimeout = 30 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 16 << 20
)

// Client talks to the DeepScan analysis API. It implements analysis.Analyzer.
type Client struct {
	httpClient *http.Client
	breaker    *resilience.Breaker
	timeout    time.Duration
}

var _ analysis.Analyzer = (*Client)(nil)

// NewClient creates a client whose requests give up after timeout.
func NewClient(timeout time.Duration) *Client {
	return newClient(timeout, NewProxyResolver())
}

func newClient(timeout time.Duration, resolver *ProxyResolver) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = resolver.Proxy
	return &Client{
		httpClient: &http.Client{Transport: otelhttp.NewTransport(transport)},
		timeout:    timeout,
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type alarmsResponse struct {
	Data struct {
		Alarms []inspection.Alarm `json:"alarms"`
	} `json:"data"`
}

// Analyze uploads req.Content as a multipart file and returns the alarms.
func (c *Client) Analyze(ctx context.Context, req analysis.Request) ([]inspection.Alarm, error) {
	body, contentType, err := fileForm(req.Filename, req.Content)
	if err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}

	data, err := c.doRequest(ctx, req.Endpoint, analysisPath, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", req.Filename, err)
	}

	var result alarmsResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal alarms: %w", err)
	}
	return result.Data.Alarms, nil
}

type tokenInfoResponse struct {
	Data struct {
		Name           string `json:"name"`
		ExpirationDate int64  `json:"expirationDate"` // epoch ms, 0 = never
		Error          string `json:"error"`
	} `json:"data"`
}

// TokenInfo asks the service to describe the token of ep.
func (c *Client) TokenInfo(ctx context.Context, ep analysis.Endpoint) (analysis.TokenInfo, error) {
	data, err := c.doRequest(ctx, ep, tokenInfoPath, "application/json", []byte("{}"))
	if err != nil {
		return analysis.TokenInfo{}, fmt.Errorf("token info: %w", err)
	}

	var result tokenInfoResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return analysis.TokenInfo{}, fmt.Errorf("unmarshal token info: %w", err)
	}

	info := analysis.TokenInfo{Name: result.Data.Name, Error: result.Data.Error}
	if ms := result.Data.ExpirationDate; ms > 0 {
		info.ExpiresAt = time.UnixMilli(ms).UTC()
	}
	return info, nil
}

// fileForm builds a multipart body with a single text/plain "file" part.
func fileForm(filename, content string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", "text/plain")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(part, content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

type errorResponse struct {
	Reason string `json:"reason"`
	Code   string `json:"code"`
}

func (c *Client) doRequest(ctx context.Context, ep analysis.Endpoint, path, contentType string, body []byte) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if ep.ProxyURL != "" {
		p, err := ParseProxy(ep.ProxyURL)
		if err != nil {
			return nil, err
		}
		reqCtx = withProxy(reqCtx, p.URL)
	}

	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, ep.ServerURL+path, bytes.NewReader(body))
		if err != nil {
			// A malformed server URL is a settings problem, not an outage.
			return resilience.Permanent(fmt.Errorf("create request: %w", err))
		}

		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		if ep.Token != "" {
			req.Header.Set("Authorization", "Bearer "+ep.Token)
		}
		if ep.UserAgent != "" {
			req.Header.Set("User-Agent", ep.UserAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			remote := &analysis.RemoteError{StatusCode: resp.StatusCode}
			var er errorResponse
			if json.Unmarshal(data, &er) == nil {
				remote.Reason, remote.Code = er.Reason, er.Code
			}
			if resp.StatusCode < 500 {
				return resilience.Permanent(remote)
			}
			return remote
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		err := c.breaker.Execute(call)
		return result, c.mapError(ctx, reqCtx, err)
	}
	return result, c.mapError(ctx, reqCtx, resilience.StripPermanent(call()))
}

// mapError turns an expired request deadline into analysis.ErrTimeout. A
// cancelled caller context is returned as is.
func (c *Client) mapError(parent, reqCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if parent.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", analysis.ErrTimeout, c.timeout)
	}
	return err
}
