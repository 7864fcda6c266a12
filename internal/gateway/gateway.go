// Package gateway routes all calls to external bibliographic registries
// through per-provider rate limiting, retry, and circuit breaking.
package gateway

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/biblio-cli/internal/config"
	"github.com/sells-group/biblio-cli/internal/resilience"
)

// timeNow is injectable for tests.
var timeNow = time.Now

// Provider identifies an external registry.
type Provider string

const (
	ProviderCrossref Provider = "crossref"
	ProviderPubMed   Provider = "pubmed"
	ProviderOpenAlex Provider = "openalex"
)

// Response is the raw outcome of one registry call.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Options configures the Gateway.
type Options struct {
	BaseURLs  map[Provider]string
	Rates     map[string]config.ProviderLimit
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.RetryConfig
}

// Gateway is the single egress point for registry traffic.
type Gateway struct {
	client    *http.Client
	baseURLs  map[Provider]string
	limiters  map[Provider]*Limiter
	breakers  map[Provider]*resilience.CircuitBreaker
	userAgent string
	retry     resilience.RetryConfig

	apiCalls atomic.Int64
}

// New creates a Gateway with per-provider limiters and breakers.
func New(opts Options) *Gateway {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "biblio-cli/1.0"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	rates := opts.Rates
	if rates == nil {
		rates = config.DefaultProviderRates()
	}

	limiters := make(map[Provider]*Limiter)
	breakers := make(map[Provider]*resilience.CircuitBreaker)
	for name, lim := range rates {
		p := Provider(name)
		limiters[p] = NewLimiter(lim.RatePerSec, lim.Burst)
		breakers[p] = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	}

	return &Gateway{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURLs:  opts.BaseURLs,
		limiters:  limiters,
		breakers:  breakers,
		userAgent: opts.UserAgent,
		retry:     opts.Retry,
	}
}

// APICalls reports the number of outbound requests issued so far.
func (g *Gateway) APICalls() int64 {
	return g.apiCalls.Load()
}

// limiterFor returns the provider's limiter, falling back to a conservative
// default for providers that were not configured.
func (g *Gateway) limiterFor(provider Provider) *Limiter {
	if lim, ok := g.limiters[provider]; ok {
		return lim
	}
	lim := NewLimiter(1, 1)
	g.limiters[provider] = lim
	return lim
}

// Request performs one rate-limited call to a provider endpoint. The
// response status is classified: 2xx succeeds, 400/401/403/404 fail
// permanently, and 408/429/5xx fail as retryable.
func (g *Gateway) Request(ctx context.Context, provider Provider, endpoint, method string, params url.Values) (*Response, error) {
	base, ok := g.baseURLs[provider]
	if !ok {
		return nil, eris.Errorf("gateway: unknown provider %q", provider)
	}

	if err := g.limiterFor(provider).Wait(ctx, 1); err != nil {
		return nil, eris.Wrap(err, "gateway: rate limiter wait")
	}

	reqURL := base + "/" + strings.TrimPrefix(endpoint, "/")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "gateway: create request")
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	g.apiCalls.Add(1)
	resp, err := g.client.Do(req)
	if err != nil {
		// Transport-level failures (incl. timeouts) are retryable.
		return nil, resilience.NewTransientError(eris.Wrapf(err, "gateway: %s %s", method, endpoint), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "gateway: read body"), resp.StatusCode)
	}

	out := &Response{StatusCode: resp.StatusCode, Body: body, Header: resp.Header}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return out, nil
	case resilience.IsRetryableStatus(resp.StatusCode):
		return out, resilience.NewTransientError(
			eris.Errorf("gateway: %s returned %d", provider, resp.StatusCode), resp.StatusCode)
	default:
		return out, resilience.NewPermanentError(
			eris.Errorf("gateway: %s returned %d", provider, resp.StatusCode), resp.StatusCode)
	}
}

// RequestWithRetry wraps Request with bounded exponential backoff and a
// per-provider circuit breaker. Client errors are never retried.
func (g *Gateway) RequestWithRetry(ctx context.Context, provider Provider, endpoint, method string, params url.Values) (*Response, error) {
	breaker, hasBreaker := g.breakers[provider]

	retryCfg := g.retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = resilience.RetryLogger(string(provider), endpoint)
	}

	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*Response, error) {
		var resp *Response
		call := func(ctx context.Context) error {
			var err error
			resp, err = g.Request(ctx, provider, endpoint, method, params)
			return err
		}

		var err error
		if hasBreaker {
			err = breaker.Execute(ctx, call)
		} else {
			err = call(ctx)
		}
		if err != nil {
			zap.L().Debug("gateway: request failed",
				zap.String("provider", string(provider)),
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			return nil, err
		}
		return resp, nil
	})
}
