package quality

import (
	"context"
	"net/http"
	"time"
)

// LinkChecker reports whether a reference URL still responds.
type LinkChecker interface {
	Reachable(ctx context.Context, url string) bool
}

// HTTPLinkChecker probes URLs with HEAD requests.
type HTTPLinkChecker struct {
	client *http.Client
}

// NewHTTPLinkChecker creates a checker; timeout zero defaults to 5s.
func NewHTTPLinkChecker(timeout time.Duration) *HTTPLinkChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPLinkChecker{client: &http.Client{Timeout: timeout}}
}

// Reachable issues a HEAD request; any status below 400 counts as alive.
func (c *HTTPLinkChecker) Reachable(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close() //nolint:errcheck
	return resp.StatusCode < 400
}
