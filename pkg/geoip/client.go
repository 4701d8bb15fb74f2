// Package geoip resolves an IP address to a location via ip-api.com.
package geoip

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landed-cost/internal/resilience"
)

const defaultBaseURL = "http://ip-api.com"

// Client performs IP geolocation lookups.
type Client interface {
	Lookup(ctx context.Context, ip string) (*Location, error)
}

// Location is a geolocated IP address.
type Location struct {
	IP          string
	City        string
	Region      string
	Country     string
	CountryCode string
	Lat         float64
	Lon         float64
}

// lookupResponse is the ip-api.com JSON payload.
type lookupResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Query       string  `json:"query"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
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

// NewClient creates an ip-api.com client. The free tier needs no credential.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, ip string) (*Location, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Location, error) {
		return c.lookup(ctx, ip)
	})
}

func (c *httpClient) lookup(ctx context.Context, ip string) (*Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json/"+ip, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geoip: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geoip: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geoip: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geoip: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, eris.Wrap(err, "geoip: unmarshal response")
	}

	if lr.Status != "success" {
		return nil, eris.Errorf("geoip: lookup failed: %s", lr.Message)
	}

	return &Location{
		IP:          lr.Query,
		City:        lr.City,
		Region:      lr.RegionName,
		Country:     lr.Country,
		CountryCode: lr.CountryCode,
		Lat:         lr.Lat,
		Lon:         lr.Lon,
	}, nil
}
