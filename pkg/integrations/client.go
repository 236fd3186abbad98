package integrations

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/chocorepack/pkg/httputil"
	"github.com/matzehuels/chocorepack/pkg/observability"
)

// Client provides shared HTTP functionality for the registry client and the
// installer mirror. It handles retry policy, common request headers and
// atomic downloads to disk.
type Client struct {
	http    *http.Client
	headers map[string]string
	retry   httputil.Policy
}

// NewClient creates a Client with default headers and a retry policy.
// Headers are applied to all requests made through this client.
// Pass nil for headers if no default headers are needed.
func NewClient(headers map[string]string, retry httputil.Policy) *Client {
	return &Client{
		http:    NewHTTPClient(0),
		headers: headers,
		retry:   retry,
	}
}

// WithHTTPClient returns a copy of c that sends requests through hc.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *c
	cp.http = hc
	return &cp
}

// Download streams rawURL into the file dest and returns the number of bytes
// written.
//
// The body is written to a temporary file in dest's directory and renamed
// into place only after the copy completed, so dest either does not exist or
// holds the complete response. Retries follow the client's policy; each
// attempt starts from an empty file.
func (c *Client) Download(ctx context.Context, rawURL, dest string) (int64, error) {
	var n int64
	err := c.retry.Do(ctx, func() error {
		var err error
		n, err = c.downloadOnce(ctx, rawURL, dest)
		return err
	})
	return n, err
}

func (c *Client) downloadOnce(ctx context.Context, rawURL, dest string) (int64, error) {
	body, err := c.doRequest(ctx, rawURL, nil)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, httputil.Retryable(fmt.Errorf("%w: read body: %v", ErrNetwork, err))
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return n, err
	}
	return n, nil
}

func (c *Client) doRequest(ctx context.Context, rawURL string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	host, path := req.URL.Host, req.URL.Path
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return &httputil.RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
