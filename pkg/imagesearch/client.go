// Package imagesearch finds product images via the Google Custom Search API.
package imagesearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// Client performs licensed image searches.
type Client interface {
	// FirstImage returns the direct link of the top image result, or ""
	// when the query has no hits.
	FirstImage(ctx context.Context, query string) (string, error)
}

type searchResponse struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
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
	apiKey  string
	cx      string
	baseURL string
	http    *http.Client
}

// NewClient creates a Custom Search image client for the given engine id.
func NewClient(apiKey, cx string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		cx:      cx,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) FirstImage(ctx context.Context, query string) (string, error) {
	params := url.Values{
		"key":        {c.apiKey},
		"cx":         {c.cx},
		"q":          {query},
		"searchType": {"image"},
		"num":        {strconv.Itoa(1)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", eris.Wrap(err, "imagesearch: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "imagesearch: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "imagesearch: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("imagesearch: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", eris.Wrap(err, "imagesearch: unmarshal response")
	}

	if len(sr.Items) == 0 {
		return "", nil
	}
	return sr.Items[0].Link, nil
}
