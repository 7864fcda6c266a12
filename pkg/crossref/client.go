// Package crossref wraps the Crossref works API, the pipeline's DOI
// metadata registry. All traffic goes through the rate-limited gateway.
package crossref

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/biblio-cli/internal/gateway"
)

// MaxBatchSize is the provider-imposed cap on DOIs per filter query.
const MaxBatchSize = 50

// Transport is the gateway surface the client needs.
type Transport interface {
	RequestWithRetry(ctx context.Context, provider gateway.Provider, endpoint, method string, params url.Values) (*gateway.Response, error)
}

// Client fetches bibliographic records by DOI.
type Client interface {
	GetWork(ctx context.Context, doi string) (*Work, error)
	ListWorks(ctx context.Context, dois []string) (map[string]*Work, error)
}

// Work is the subset of a Crossref work record the pipeline maps onto
// references.
type Work struct {
	DOI            string      `json:"DOI"`
	Type           string      `json:"type"`
	Title          []string    `json:"title"`
	ContainerTitle []string    `json:"container-title"`
	Author         []Author    `json:"author"`
	Issued         DateParts   `json:"issued"`
	Volume         string      `json:"volume"`
	Issue          string      `json:"issue"`
	Page           string      `json:"page"`
	Abstract       string      `json:"abstract"`
	Subject        []string    `json:"subject"`
	CitedByCount   int         `json:"is-referenced-by-count"`
	URL            string      `json:"URL"`
	Relation       WorkRelated `json:"relation"`
}

// Author is a Crossref contributor entry.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

// DateParts holds Crossref's nested date representation.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the first date part, or 0 when absent.
func (d DateParts) Year() int {
	if len(d.DateParts) > 0 && len(d.DateParts[0]) > 0 {
		return d.DateParts[0][0]
	}
	return 0
}

// WorkRelated carries update relations; an "is-retracted-by" entry marks
// the work as retracted.
type WorkRelated struct {
	IsRetractedBy []json.RawMessage `json:"is-retracted-by,omitempty"`
}

// IsRetracted reports whether the registry links a retraction notice.
func (w *Work) IsRetracted() bool {
	return len(w.Relation.IsRetractedBy) > 0
}

// FirstTitle returns the primary title, or "".
func (w *Work) FirstTitle() string {
	if len(w.Title) > 0 {
		return w.Title[0]
	}
	return ""
}

// Journal returns the primary container title, or "".
func (w *Work) Journal() string {
	if len(w.ContainerTitle) > 0 {
		return w.ContainerTitle[0]
	}
	return ""
}

type workMessage struct {
	Message Work `json:"message"`
}

type workListMessage struct {
	Message struct {
		Items []Work `json:"items"`
	} `json:"message"`
}

type client struct {
	transport Transport
}

// NewClient creates a Crossref client over the given transport.
func NewClient(transport Transport) Client {
	return &client{transport: transport}
}

// GetWork fetches one work record by DOI.
func (c *client) GetWork(ctx context.Context, doi string) (*Work, error) {
	resp, err := c.transport.RequestWithRetry(ctx, gateway.ProviderCrossref,
		"works/"+url.PathEscape(doi), http.MethodGet, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "crossref: get work %s", doi)
	}

	var msg workMessage
	if err := json.Unmarshal(resp.Body, &msg); err != nil {
		return nil, eris.Wrapf(err, "crossref: decode work %s", doi)
	}
	return &msg.Message, nil
}

// ListWorks fetches up to MaxBatchSize works in one filter query. The
// returned map is keyed by lower-cased DOI; missing DOIs are simply absent.
func (c *client) ListWorks(ctx context.Context, dois []string) (map[string]*Work, error) {
	if len(dois) == 0 {
		return map[string]*Work{}, nil
	}
	if len(dois) > MaxBatchSize {
		return nil, eris.Errorf("crossref: batch of %d exceeds limit %d", len(dois), MaxBatchSize)
	}

	filters := make([]string, 0, len(dois))
	for _, doi := range dois {
		filters = append(filters, "doi:"+doi)
	}
	params := url.Values{}
	params.Set("filter", strings.Join(filters, ","))
	params.Set("rows", "50")

	resp, err := c.transport.RequestWithRetry(ctx, gateway.ProviderCrossref,
		"works", http.MethodGet, params)
	if err != nil {
		return nil, eris.Wrap(err, "crossref: list works")
	}

	var msg workListMessage
	if err := json.Unmarshal(resp.Body, &msg); err != nil {
		return nil, eris.Wrap(err, "crossref: decode work list")
	}

	works := make(map[string]*Work, len(msg.Message.Items))
	for i := range msg.Message.Items {
		w := &msg.Message.Items[i]
		works[strings.ToLower(w.DOI)] = w
	}
	return works, nil
}
