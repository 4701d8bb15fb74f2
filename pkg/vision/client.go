// Package vision performs image label detection via the Gemini API.
package vision

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// Client detects descriptive labels for product images.
type Client interface {
	// DetectLabels returns up to max short labels for the image bytes.
	DetectLabels(ctx context.Context, image []byte, mimeType string, max int) ([]string, error)
	// DetectLabelsURL fetches the image at url and labels it.
	DetectLabelsURL(ctx context.Context, url string, max int) ([]string, error)
}

// Option configures the client.
type Option func(*genaiClient)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *genaiClient) {
		c.model = model
	}
}

// WithHTTPClient overrides the http.Client used for URL fetches.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *genaiClient) {
		c.http = hc
	}
}

type genaiClient struct {
	client *genai.Client
	model  string
	http   *http.Client
}

// NewClient creates a Gemini-backed vision client.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, eris.Wrap(err, "vision: create genai client")
	}

	c := &genaiClient{
		client: gc,
		model:  "gemini-3-flash-preview",
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

const labelPrompt = "List short descriptive labels for the main object in this image, " +
	"most specific first, one per line. Labels only, no commentary."

func (c *genaiClient) DetectLabels(ctx context.Context, image []byte, mimeType string, max int) ([]string, error) {
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(labelPrompt),
		}, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return nil, eris.Wrap(err, "vision: generate content")
	}

	labels := parseLabels(resp.Text(), max)
	if len(labels) == 0 {
		return nil, eris.New("vision: no labels detected")
	}
	return labels, nil
}

func (c *genaiClient) DetectLabelsURL(ctx context.Context, url string, max int) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "vision: build image request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "vision: fetch image")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("vision: image fetch returned status %d", resp.StatusCode)
	}

	// Cap the download; product photos beyond this are almost certainly junk.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, eris.Wrap(err, "vision: read image")
	}

	return c.DetectLabels(ctx, body, resp.Header.Get("Content-Type"), max)
}

func parseLabels(text string, max int) []string {
	var labels []string
	for _, line := range strings.Split(text, "\n") {
		label := strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if label == "" {
			continue
		}
		labels = append(labels, label)
		if max > 0 && len(labels) >= max {
			break
		}
	}
	return labels
}
