package crossref

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/biblio-cli/internal/gateway"
)

// fakeTransport serves a canned body and records the last request.
type fakeTransport struct {
	body     string
	err      error
	endpoint string
	params   url.Values
}

func (f *fakeTransport) RequestWithRetry(_ context.Context, _ gateway.Provider, endpoint, _ string, params url.Values) (*gateway.Response, error) {
	f.endpoint = endpoint
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.Response{StatusCode: http.StatusOK, Body: []byte(f.body)}, nil
}

func TestGetWork(t *testing.T) {
	tr := &fakeTransport{body: `{"message": {
		"DOI": "10.1234/test.001",
		"type": "journal-article",
		"title": ["A Study"],
		"container-title": ["Med J"],
		"author": [{"given": "Jane", "family": "Smith"}],
		"issued": {"date-parts": [[2023, 4]]},
		"volume": "12",
		"page": "45-52",
		"is-referenced-by-count": 7
	}}`}

	work, err := NewClient(tr).GetWork(context.Background(), "10.1234/test.001")
	require.NoError(t, err)
	assert.Equal(t, "works/10.1234%2Ftest.001", tr.endpoint, "DOI is path-escaped")
	assert.Equal(t, "A Study", work.FirstTitle())
	assert.Equal(t, "Med J", work.Journal())
	assert.Equal(t, 2023, work.Issued.Year())
	assert.Equal(t, 7, work.CitedByCount)
	assert.False(t, work.IsRetracted())
}

func TestGetWork_RetractionRelation(t *testing.T) {
	tr := &fakeTransport{body: `{"message": {
		"DOI": "10.1234/retr.001",
		"relation": {"is-retracted-by": [{"id": "10.1234/notice.1"}]}
	}}`}

	work, err := NewClient(tr).GetWork(context.Background(), "10.1234/retr.001")
	require.NoError(t, err)
	assert.True(t, work.IsRetracted())
}

func TestListWorks(t *testing.T) {
	tr := &fakeTransport{body: `{"message": {"items": [
		{"DOI": "10.1234/A.1", "title": ["First"]},
		{"DOI": "10.1234/b.2", "title": ["Second"]}
	]}}`}

	works, err := NewClient(tr).ListWorks(context.Background(), []string{"10.1234/a.1", "10.1234/b.2"})
	require.NoError(t, err)
	assert.Equal(t, "works", tr.endpoint)
	assert.Equal(t, "doi:10.1234/a.1,doi:10.1234/b.2", tr.params.Get("filter"))

	require.Len(t, works, 2)
	// Keys are lower-cased regardless of registry casing.
	assert.Equal(t, "First", works["10.1234/a.1"].FirstTitle())
	assert.Equal(t, "Second", works["10.1234/b.2"].FirstTitle())
}

func TestListWorks_Empty(t *testing.T) {
	works, err := NewClient(&fakeTransport{}).ListWorks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, works)
}

func TestListWorks_OverLimit(t *testing.T) {
	dois := make([]string, MaxBatchSize+1)
	for i := range dois {
		dois[i] = "10.1234/x"
	}
	_, err := NewClient(&fakeTransport{}).ListWorks(context.Background(), dois)
	assert.ErrorContains(t, err, "exceeds limit")
}

func TestDateParts_Year(t *testing.T) {
	assert.Equal(t, 0, DateParts{}.Year())
	assert.Equal(t, 0, DateParts{DateParts: [][]int{{}}}.Year())
	assert.Equal(t, 2020, DateParts{DateParts: [][]int{{2020, 1, 15}}}.Year())
}
