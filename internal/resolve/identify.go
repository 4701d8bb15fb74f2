package resolve

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/landed-cost/internal/model"
	"github.com/sells-group/landed-cost/pkg/anthropic"
	"github.com/sells-group/landed-cost/pkg/vision"
)

const (
	// UnknownProduct is the terminal default of the identification stage.
	UnknownProduct = "Unknown"

	maxLabels = 5

	identifySystem    = "You are an expert product identifier. Extract product name, brand, category, and model from any description."
	labelNamingSystem = "You are a product identification expert. From the following image labels, determine the most likely product name."
	recognitionSystem = "You are a product recognition expert. From image labels, return the exact product name."
)

var productMarkerRe = regexp.MustCompile(`(?i)product name.*?:\s*(.*)`)

// Identifier resolves a product name from any mix of free text, barcode
// payload, and image input. Adapter order is fixed; a later source never
// overrides an earlier non-empty name.
type Identifier struct {
	ai      anthropic.Client
	vision  vision.Client
	timeout time.Duration
}

// NewIdentifier creates the identification stage.
func NewIdentifier(ai anthropic.Client, vis vision.Client, timeout time.Duration) *Identifier {
	return &Identifier{ai: ai, vision: vis, timeout: timeout}
}

// Run resolves the product name into c. The stage never aborts; with no
// usable input the product is the "Unknown" sentinel.
func (i *Identifier) Run(ctx context.Context, in model.Input, c *model.Context) {
	cascade := Cascade[string]{
		Stage:   "identify",
		Default: UnknownProduct,
		Timeout: i.timeout,
		Adapters: []Adapter[string]{
			AdapterFunc[string]{AdapterName: "text-marker", Fn: func(ctx context.Context) Resolution[string] {
				return i.resolveMarker(in.Text)
			}},
			AdapterFunc[string]{AdapterName: "text-inference", Fn: func(ctx context.Context) Resolution[string] {
				return i.resolveFromText(ctx, in.Text, &c.Diagnostics)
			}},
			AdapterFunc[string]{AdapterName: "raw-text", Fn: func(ctx context.Context) Resolution[string] {
				if strings.TrimSpace(in.Text) == "" {
					return Absent[string]()
				}
				return Resolved("raw-text", strings.TrimSpace(in.Text))
			}},
			AdapterFunc[string]{AdapterName: "image-labels", Fn: func(ctx context.Context) Resolution[string] {
				return i.resolveFromImage(ctx, in, &c.Diagnostics)
			}},
		},
	}

	c.Product = cascade.Run(ctx).Value
}

// resolveMarker extracts a name following a "product name:" marker in the
// raw description, without any inference call.
func (i *Identifier) resolveMarker(text string) Resolution[string] {
	name := extractMarkedName(text)
	if name == "" {
		return Absent[string]()
	}
	return Resolved("text-marker", name)
}

// resolveFromText asks the text-inference source to identify the product
// from the description. The raw reply is retained as a diagnostic; when the
// reply itself carries a "product name:" marker the marked value wins over
// the full reply.
func (i *Identifier) resolveFromText(ctx context.Context, text string, diag *model.Diagnostics) Resolution[string] {
	if strings.TrimSpace(text) == "" {
		return Absent[string]()
	}

	reply, err := i.ai.Complete(ctx, identifySystem, "Product description: "+text)
	if err != nil {
		return Failed[string]("text-inference", err)
	}
	diag.TextAnalysis = reply

	if reply == "" {
		return Absent[string]()
	}
	if name := extractMarkedName(reply); name != "" {
		return Resolved("text-inference", name)
	}
	return Resolved("text-inference", reply)
}

// resolveFromImage labels the supplied image and names the product from the
// label summary. Labels and the naming reply are retained as diagnostics.
func (i *Identifier) resolveFromImage(ctx context.Context, in model.Input, diag *model.Diagnostics) Resolution[string] {
	if !in.HasImage() {
		return Absent[string]()
	}

	var (
		labels []string
		err    error
	)
	if len(in.Image) > 0 {
		labels, err = i.vision.DetectLabels(ctx, in.Image, "", maxLabels)
	} else {
		labels, err = i.vision.DetectLabelsURL(ctx, in.ImageURL, maxLabels)
	}
	if err != nil {
		return Failed[string]("image-labels", err)
	}

	summary := strings.Join(labels, ", ")
	name, err := i.ai.Complete(ctx, labelNamingSystem, "Image labels: "+summary)
	if err != nil {
		return Failed[string]("image-labels", err)
	}

	diag.ImageAnalysis = &model.ImageAnalysis{
		Labels:      labels,
		Summary:     summary,
		ProductName: name,
	}

	if name == "" {
		return Absent[string]()
	}
	return Resolved("image-labels", name)
}

// Analyze runs the independent text, image, and barcode analyses for a raw
// identification request. The three sources have no ordering dependency and
// run concurrently.
func (i *Identifier) Analyze(ctx context.Context, in model.Input) (*model.Diagnostics, error) {
	diag := &model.Diagnostics{}

	var fileAnalysis, urlAnalysis *model.ImageAnalysis

	g, gctx := errgroup.WithContext(ctx)

	if in.Text != "" {
		g.Go(func() error {
			reply, err := i.ai.Complete(gctx, identifySystem, "Product description: "+in.Text)
			if err != nil {
				return err
			}
			diag.TextAnalysis = reply
			return nil
		})
	}

	if in.Text == "" && len(in.Image) > 0 {
		g.Go(func() error {
			labels, err := i.vision.DetectLabels(gctx, in.Image, "", maxLabels)
			if err != nil {
				return err
			}
			summary := strings.Join(labels, ", ")
			name, err := i.ai.Complete(gctx, labelNamingSystem, "Image labels: "+summary)
			if err != nil {
				return err
			}
			fileAnalysis = &model.ImageAnalysis{Labels: labels, Summary: summary, ProductName: name}
			return nil
		})
	}

	if in.ImageURL != "" {
		g.Go(func() error {
			labels, err := i.vision.DetectLabelsURL(gctx, in.ImageURL, maxLabels)
			if err != nil {
				return err
			}
			urlAnalysis = &model.ImageAnalysis{
				Labels:  labels,
				Summary: "Detected: " + strings.Join(labels, ", "),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A URL-sourced analysis takes precedence over the uploaded file's.
	diag.ImageAnalysis = fileAnalysis
	if urlAnalysis != nil {
		diag.ImageAnalysis = urlAnalysis
	}
	if in.BarcodeData != "" {
		diag.BarcodeAnalysis = BarcodeHint(in.BarcodeData)
	}

	return diag, nil
}

// FromImage identifies a product from image bytes alone, returning the
// resolved name and the detected labels.
func (i *Identifier) FromImage(ctx context.Context, image []byte) (string, []string, error) {
	labels, err := i.vision.DetectLabels(ctx, image, "", maxLabels)
	if err != nil {
		return "", nil, err
	}

	summary := strings.Join(labels, ", ")
	name, err := i.ai.Complete(ctx, recognitionSystem, "Image labels: "+summary)
	if err != nil {
		return "", nil, err
	}

	return name, labels, nil
}

// BarcodeHint builds the decode hint returned for raw barcode payloads.
func BarcodeHint(data string) string {
	return fmt.Sprintf("You submitted barcode data: %s. Try decoding via ZXing at: https://zxing.org/w/decode?u=%s", data, url.QueryEscape(data))
}

func extractMarkedName(text string) string {
	if !strings.Contains(strings.ToLower(text), "product name") {
		return ""
	}
	m := productMarkerRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
