// Package ddg scrapes DuckDuckGo image results. The results page embeds a
// bootstrap script assigning a JSON object to "var o"; the first entry of
// its results array carries a direct image URL.
package ddg

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://duckduckgo.com"

var bootstrapRe = regexp.MustCompile(`(?s)var o = (\{.*?\});`)

// Client scrapes image search results.
type Client interface {
	// FirstImage returns the first image URL for the query, or "" when the
	// page carries no parsable payload.
	FirstImage(ctx context.Context, query string) (string, error)
}

type bootstrapPayload struct {
	Results []struct {
		Image string `json:"image"`
	} `json:"results"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
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
}

// NewClient creates a DuckDuckGo image scrape client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) FirstImage(ctx context.Context, query string) (string, error) {
	params := url.Values{
		"q":   {query},
		"iax": {"images"},
		"ia":  {"images"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return "", eris.Wrap(err, "ddg: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "ddg: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "ddg: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("ddg: unexpected status %d", resp.StatusCode)
	}

	m := bootstrapRe.FindSubmatch(body)
	if m == nil {
		return "", nil
	}

	var payload bootstrapPayload
	if err := json.Unmarshal(m[1], &payload); err != nil {
		return "", eris.Wrap(err, "ddg: parse bootstrap payload")
	}

	if len(payload.Results) == 0 {
		return "", nil
	}
	return payload.Results[0].Image, nil
}
