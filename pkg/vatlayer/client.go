// Package vatlayer fetches standard VAT rates by ISO country code from the
// apilayer rate service.
package vatlayer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "http://apilayer.net/api"

// Client looks up standard VAT rates.
type Client interface {
	// StandardRate returns the standard VAT rate for a country code as a
	// fraction. ok is false when the service has no rate for the country.
	StandardRate(ctx context.Context, countryCode string) (rate float64, ok bool, err error)
	// Configured reports whether a credential is present. An unconfigured
	// client never issues requests.
	Configured() bool
}

type rateResponse struct {
	Success      bool    `json:"success"`
	StandardRate float64 `json:"standard_rate"`
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
	accessKey string
	baseURL   string
	http      *http.Client
}

// NewClient creates a vatlayer client. An empty access key yields an
// unconfigured client.
func NewClient(accessKey string, opts ...Option) Client {
	c := &httpClient{
		accessKey: accessKey,
		baseURL:   defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Configured() bool {
	return c.accessKey != ""
}

func (c *httpClient) StandardRate(ctx context.Context, countryCode string) (float64, bool, error) {
	if !c.Configured() {
		return 0, false, eris.New("vatlayer: access key not configured")
	}

	params := url.Values{
		"access_key":   {c.accessKey},
		"country_code": {countryCode},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rate?"+params.Encode(), nil)
	if err != nil {
		return 0, false, eris.Wrap(err, "vatlayer: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, false, eris.Wrap(err, "vatlayer: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, false, eris.Wrap(err, "vatlayer: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return 0, false, eris.Errorf("vatlayer: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var rr rateResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return 0, false, eris.Wrap(err, "vatlayer: unmarshal response")
	}

	if rr.StandardRate <= 0 {
		return 0, false, nil
	}
	return rr.StandardRate / 100, true, nil
}
