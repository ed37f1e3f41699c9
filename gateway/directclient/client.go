// Package directclient implements the Direct HTTP Client: executing a
// pre-built LinkedIn GraphQL URL server-side using a cached cookie jar.
// Header order, cookie-header assembly, and error shape follow the
// reference LinkedIn API client's conventions; timeout and transport-retry
// handling layer pantry/retry on top.
package directclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/linkedingateway/gateway/gateway/credentials"
	"github.com/linkedingateway/gateway/gateway/gwerrors"
	"github.com/linkedingateway/gateway/pantry/retry"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 5 << 20

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Client executes LinkedIn GraphQL requests directly from the server using
// credentials held by the Credential Registry.
type Client struct {
	httpClient *http.Client
	retryCfg   retry.Config
	userAgent  string
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client (tests inject one
// pointed at an httptest.Server).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithUserAgent overrides the default desktop user-agent string.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New constructs a Client with a 30s timeout and up to 3 attempts on
// transport failure.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryCfg:   retry.ConstantBackoff(500*time.Millisecond, 3),
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retryCfg.RetryIf = retry.SkipPermanent
	return c
}

// Execute performs a GET against reqURL using creds, returning the raw
// response body on success. Non-2xx responses and transport failures are
// both returned as *gwerrors.Error; only transport failures are retried (a
// non-2xx response is a permanent outcome for this attempt).
func (c *Client) Execute(ctx context.Context, reqURL string, creds credentials.Credentials) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		b, err := c.doOnce(ctx, reqURL, creds)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		var gwErr *gwerrors.Error
		if errors.As(err, &gwErr) {
			return nil, gwErr
		}
		return nil, gwerrors.UpstreamTransportError(err.Error())
	}
	return body, nil
}

func (c *Client) doOnce(ctx context.Context, reqURL string, creds credentials.Credentials) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, retry.PermanentError(gwerrors.Internal(fmt.Sprintf("build request: %v", err)))
	}

	req.Header.Set("user-agent", c.userAgent)
	req.Header.Set("accept", "application/vnd.linkedin.normalized+json+2.1")
	req.Header.Set("x-restli-protocol-version", "2.0.0")
	req.Header.Set("csrf-token", creds.CSRFToken)
	req.Header.Set("cookie", cookieHeader(creds.Cookies))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, retry.PermanentError(gwerrors.AuthStale(""))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet := strings.TrimSpace(string(respBody))
		if len(snippet) > 2000 {
			snippet = snippet[:2000] + "..."
		}
		return nil, retry.PermanentError(gwerrors.UpstreamHttpError(resp.StatusCode, snippet))
	}

	return respBody, nil
}

// cookieHeader assembles a deterministic "name=value; ..." header, sorted
// by cookie name so repeated calls (and tests) produce identical output.
func cookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+cookies[name])
	}
	return strings.Join(parts, "; ")
}
