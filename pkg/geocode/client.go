// Package geocode turns coordinates into formatted addresses using the
// Google Geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api"

// Client performs reverse geocoding.
type Client interface {
	// Reverse returns the formatted address for a coordinate pair, or
	// "Address not found" when the API has no result.
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

type reverseResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
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
	baseURL string
	http    *http.Client
}

// NewClient creates a Google Geocoding client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
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

func (c *httpClient) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	params := url.Values{
		"latlng": {fmt.Sprintf("%f,%f", lat, lng)},
		"key":    {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/geocode/json?"+params.Encode(), nil)
	if err != nil {
		return "", eris.Wrap(err, "geocode: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "geocode: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "geocode: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("geocode: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var rr reverseResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return "", eris.Wrap(err, "geocode: unmarshal response")
	}

	if len(rr.Results) == 0 {
		return "Address not found", nil
	}
	return rr.Results[0].FormattedAddress, nil
}
