// Package httpclient implements C2: a single process-wide pooled HTTP
// client plus a retrying Facade around it. Transport tuning is grounded on
// ManuGH-xg2g's internal/platform/httpx.NewClient, re-tuned for long-lived
// payload streams (no blanket client-level Timeout; that would kill a
// multi-gigabyte payload transfer), and the retry/backoff shape follows
// ManuGH-xg2g's internal/jobs/fetch.go fetchEPGWithRetry.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	// UserAgent identifies this tool to Microsoft's channel servers.
	UserAgent = "msvc-kit/1.0 (+https://github.com/loonghao/msvc-kit)"

	maxIdleConnsPerHost   = 10
	idleConnTimeout       = 90 * time.Second
	dialTimeout           = 15 * time.Second
	tlsHandshakeTimeout   = 15 * time.Second
	manifestRequestTimeout = 30 * time.Second
	maxAttempts           = 4
)

var (
	shared     *http.Client
	sharedOnce sync.Once
)

// Shared returns the process-wide pooled client, built once. Payload
// streaming requests use it directly with no per-request Timeout; callers
// that need a deadline (manifest fetches) derive a context with
// context.WithTimeout instead, so an in-flight stream always remains
// cancellable without killing the shared transport.
func Shared() *http.Client {
	sharedOnce.Do(func() {
		shared = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   dialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:   true,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: maxIdleConnsPerHost,
				IdleConnTimeout:     idleConnTimeout,
				TLSHandshakeTimeout: tlsHandshakeTimeout,
			},
		}
	})
	return shared
}

// Facade wraps the shared client with conditional-request helpers, failure
// classification, and retry-with-jittered-backoff for transient failures.
type Facade struct {
	client *http.Client
}

// New constructs a Facade over the shared pooled client. Tests may
// construct one over a custom *http.Client (e.g. httptest) directly via
// NewWithClient.
func New() *Facade {
	return &Facade{client: Shared()}
}

// NewWithClient is the injection point spec.md §6 calls for
// ("http_client: dependency-injected replacement").
func NewWithClient(c *http.Client) *Facade {
	return &Facade{client: c}
}

// Conditional builds If-None-Match / If-Modified-Since headers from a
// cache sidecar's stored values. Either may be empty.
func Conditional(etag, lastModified string) http.Header {
	h := make(http.Header)
	if etag != "" {
		h.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		h.Set("If-Modified-Since", lastModified)
	}
	return h
}

// Do issues req, retrying transient failures up to maxAttempts times with
// exponential backoff (2^attempt seconds) plus jitter. A request body, if
// any, must be re-creatable via req.GetBody (set automatically by
// http.NewRequest for in-memory bodies).
func (f *Facade) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", UserAgent)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("rewind request body for retry: %w", err)
				}
				req.Body = body
			}
		}

		resp, err := f.client.Do(req)
		if err == nil && !isTransientStatus(resp.StatusCode) {
			return resp, nil
		}
		if err == nil {
			// Transient status: drain and close before retrying so the
			// connection returns to the pool.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("transient HTTP status %d", resp.StatusCode)
			continue
		}
		if !isTransientErr(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxAttempts, lastErr)
}

// GetManifest performs a conditional-capable GET with a bounded deadline,
// suitable for channel/catalog documents but not payload streams.
func (f *Facade) GetManifest(ctx context.Context, url string, conditional http.Header) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, manifestRequestTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	for k, vs := range conditional {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := f.Do(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	return resp, nil
}

func sleepBackoff(ctx context.Context, attempt int) error {
	base := time.Duration(1<<uint(attempt)) * time.Second
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	select {
	case <-time.After(base + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isTransientStatus classifies HTTP status codes per spec.md §4.2:
// 5xx, 408, and 429 are transient; all other 4xx are fatal.
func isTransientStatus(code int) bool {
	if code >= 500 {
		return true
	}
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

// isTransientErr classifies transport-level failures per spec.md §4.2:
// connection resets are transient; TLS failures and malformed URLs are
// fatal.
func isTransientErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || isConnReset(err)
	}
	return isConnReset(err)
}

func isConnReset(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}
