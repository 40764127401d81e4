// Package httpclient provides the shared outbound HTTP client leaf
// component: POST/GET with timeouts and status passthrough, reused by the
// block requester and the git-archive fetcher. It wraps
// github.com/hashicorp/go-retryablehttp, present in the teacher's
// dependency set, so transient failures against a local devnet's mining
// endpoint or a flaky archive host are retried with backoff instead of
// failing the caller outright.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/kadena-community/pact-toolbox-sub005/pactlog"
)

// Client is the capability interface components depend on, so tests can
// substitute a fake without standing up a real listener.
type Client interface {
	Post(ctx context.Context, url string, contentType string, body io.Reader) (*http.Response, error)
	Get(ctx context.Context, url string) (*http.Response, error)
}

type retryableClient struct {
	inner *retryablehttp.Client
}

// New builds a Client with the given timeout and retry count. A logger is
// required; pass pactlog.NewNop() to silence retry diagnostics.
func New(timeout time.Duration, maxRetries int, logger pactlog.Logger) Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = timeout
	rc.RetryMax = maxRetries
	rc.Logger = &retryableLogAdapter{logger: logger}
	// Keep retry backoff short: this client talks to a collocated devnet
	// mining endpoint or a git-archive host, never a user-facing service
	// that needs long backoff windows.
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	return &retryableClient{inner: rc}
}

func (c *retryableClient) Post(ctx context.Context, url string, contentType string, body io.Reader) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.inner.Do(req)
}

func (c *retryableClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.inner.Do(req)
}

// retryableLogAdapter routes go-retryablehttp's printf-style logging
// through our structured Logger instead of the standard library's *log.Logger.
type retryableLogAdapter struct {
	logger pactlog.Logger
}

func (a *retryableLogAdapter) Printf(format string, args ...any) {
	a.logger.Debug("httpclient retry", "detail", fmt.Sprintf(format, args...))
}
