package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/biblio-cli/internal/config"
	"github.com/sells-group/biblio-cli/internal/resilience"
)

func testGateway(serverURL string) *Gateway {
	return New(Options{
		BaseURLs: map[Provider]string{ProviderCrossref: serverURL},
		Rates: map[string]config.ProviderLimit{
			"crossref": {RatePerSec: 1000, Burst: 1000},
		},
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			Multiplier:     2.0,
		},
	})
}

func TestRequest_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/works/10.1234%2Ftest.001", r.URL.EscapedPath())
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	g := testGateway(srv.URL)
	resp, err := g.Request(context.Background(), ProviderCrossref,
		"works/"+url.PathEscape("10.1234/test.001"), http.MethodGet, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(resp.Body))
	assert.Equal(t, int64(1), g.APICalls())
}

func TestRequest_UnknownProvider(t *testing.T) {
	g := testGateway("http://unused")
	_, err := g.Request(context.Background(), Provider("nonexistent"), "x", http.MethodGet, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestRequest_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
		permanent bool
	}{
		{"not found", http.StatusNotFound, false, true},
		{"unauthorized", http.StatusUnauthorized, false, true},
		{"too many requests", http.StatusTooManyRequests, true, false},
		{"server error", http.StatusInternalServerError, true, false},
		{"bad gateway", http.StatusBadGateway, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			g := testGateway(srv.URL)
			_, err := g.Request(context.Background(), ProviderCrossref, "works", http.MethodGet, nil)
			require.Error(t, err)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
			if tt.permanent {
				assert.False(t, resilience.IsTransient(err))
			}
		})
	}
}

func TestRequestWithRetry_RecoversFromTransient(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	g := testGateway(srv.URL)
	resp, err := g.RequestWithRetry(context.Background(), ProviderCrossref, "works", http.MethodGet, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), hits.Load())
}

func TestRequestWithRetry_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	g := testGateway(srv.URL)
	_, err := g.RequestWithRetry(context.Background(), ProviderCrossref, "works", http.MethodGet, nil)
	require.Error(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestRequest_QueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "doi:10.1/a,doi:10.1/b", r.URL.Query().Get("filter"))
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	params := url.Values{}
	params.Set("filter", "doi:10.1/a,doi:10.1/b")

	g := testGateway(srv.URL)
	_, err := g.Request(context.Background(), ProviderCrossref, "works", http.MethodGet, params)
	require.NoError(t, err)
}
