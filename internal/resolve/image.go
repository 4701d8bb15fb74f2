package resolve

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/sells-group/landed-cost/pkg/anthropic"
	"github.com/sells-group/landed-cost/pkg/ddg"
	"github.com/sells-group/landed-cost/pkg/imagesearch"
)

// PlaceholderImageURL is returned when no image source produces a hit.
const PlaceholderImageURL = "https://via.placeholder.com/300x300.png?text=Image+Not+Found"

var imageURLRe = regexp.MustCompile(`(?i)(https?://[^\s"'<>]+?\.(?:jpg|jpeg|png))`)

const imageURLPromptTemplate = `You are an AI image search assistant.

Your job is to return a single high-quality JPG or PNG product image URL for the following product:

%q

This should be a direct link to an image file (ending in .jpg or .png), taken from a major store or manufacturer like Apple, Samsung, Amazon, BestBuy, or Walmart.

Do not explain anything. Just return the full direct image URL.`

// ImageStage finds a best-effort product image URL. The stage never fails;
// with every source unreachable it yields the placeholder.
type ImageStage struct {
	scrape  ddg.Client
	search  imagesearch.Client
	ai      anthropic.Client
	timeout time.Duration
}

// NewImageStage creates the image stage. search may be nil when no Custom
// Search credential is configured.
func NewImageStage(scrape ddg.Client, search imagesearch.Client, ai anthropic.Client, timeout time.Duration) *ImageStage {
	return &ImageStage{scrape: scrape, search: search, ai: ai, timeout: timeout}
}

// Find returns a direct image URL for the product, or the placeholder.
func (s *ImageStage) Find(ctx context.Context, product string) string {
	cascade := Cascade[string]{
		Stage:   "image",
		Default: PlaceholderImageURL,
		Timeout: s.timeout,
		Adapters: []Adapter[string]{
			AdapterFunc[string]{AdapterName: "duckduckgo", Fn: func(ctx context.Context) Resolution[string] {
				url, err := s.scrape.FirstImage(ctx, product)
				if err != nil {
					return Failed[string]("duckduckgo", err)
				}
				if url == "" {
					return Absent[string]()
				}
				return Resolved("duckduckgo", url)
			}},
			AdapterFunc[string]{AdapterName: "google-images", Fn: func(ctx context.Context) Resolution[string] {
				if s.search == nil {
					return Absent[string]()
				}
				url, err := s.search.FirstImage(ctx, product)
				if err != nil {
					return Failed[string]("google-images", err)
				}
				if url == "" {
					return Absent[string]()
				}
				return Resolved("google-images", url)
			}},
			AdapterFunc[string]{AdapterName: "ai-url", Fn: func(ctx context.Context) Resolution[string] {
				reply, err := s.ai.Complete(ctx, "", fmt.Sprintf(imageURLPromptTemplate, product))
				if err != nil {
					return Failed[string]("ai-url", err)
				}
				if m := imageURLRe.FindString(reply); m != "" {
					return Resolved("ai-url", m)
				}
				return Absent[string]()
			}},
		},
	}

	return cascade.Run(ctx).Value
}
