// Package hts queries the USITC Harmonized Tariff Schedule search API for
// official US customs duty rates.
package hts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landed-cost/internal/resilience"
)

const defaultBaseURL = "https://hts.usitc.gov/api"

// Client searches the HTS by code.
type Client interface {
	Search(ctx context.Context, hsCode string) (*SearchResponse, error)
}

// SearchResponse is the HTS search result payload.
type SearchResponse struct {
	Results []Result `json:"results"`
}

// Result is a single HTS entry.
type Result struct {
	Description string `json:"description"`
	Duties      []Duty `json:"duties"`
}

// Duty holds a duty rate as published, e.g. "5.3%".
type Duty struct {
	Duty string `json:"duty"`
}

// FirstDuty returns the duty text of the first result, or "" when the
// response carries none.
func (r *SearchResponse) FirstDuty() string {
	if len(r.Results) == 0 || len(r.Results[0].Duties) == 0 {
		return ""
	}
	return r.Results[0].Duties[0].Duty
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates an HTS search client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, hsCode string) (*SearchResponse, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*SearchResponse, error) {
		return c.search(ctx, hsCode)
	})
}

func (c *httpClient) search(ctx context.Context, hsCode string) (*SearchResponse, error) {
	reqURL := c.baseURL + "/hts?search=" + url.QueryEscape(hsCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "hts: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "hts: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "hts: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("hts: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var sr SearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, eris.Wrap(err, "hts: unmarshal response")
	}

	return &sr, nil
}
