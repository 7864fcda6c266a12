// Package openalex wraps the OpenAlex works API, used as the scholarly
// graph for citation counts and venue signals.
package openalex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/sells-group/biblio-cli/internal/gateway"
)

// Transport is the gateway surface the client needs.
type Transport interface {
	RequestWithRetry(ctx context.Context, provider gateway.Provider, endpoint, method string, params url.Values) (*gateway.Response, error)
}

// Client looks up scholarly-graph records by DOI.
type Client interface {
	GetWorkByDOI(ctx context.Context, doi string) (*Work, error)
}

// Work is the subset of an OpenAlex work the pipeline consumes.
type Work struct {
	ID              string  `json:"id"`
	DOI             string  `json:"doi"`
	CitedByCount    int     `json:"cited_by_count"`
	IsRetracted     bool    `json:"is_retracted"`
	PublicationYear int     `json:"publication_year"`
	Source          *Source `json:"primary_location,omitempty"`
}

// Source identifies the hosting venue.
type Source struct {
	SourceInfo *SourceInfo `json:"source,omitempty"`
}

// SourceInfo carries venue metadata.
type SourceInfo struct {
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

type client struct {
	transport Transport
}

// NewClient creates an OpenAlex client over the given transport.
func NewClient(transport Transport) Client {
	return &client{transport: transport}
}

// GetWorkByDOI fetches one work keyed by DOI.
func (c *client) GetWorkByDOI(ctx context.Context, doi string) (*Work, error) {
	resp, err := c.transport.RequestWithRetry(ctx, gateway.ProviderOpenAlex,
		"works/doi:"+url.PathEscape(doi), http.MethodGet, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "openalex: get work %s", doi)
	}

	var work Work
	if err := json.Unmarshal(resp.Body, &work); err != nil {
		return nil, eris.Wrapf(err, "openalex: decode work %s", doi)
	}
	return &work, nil
}
