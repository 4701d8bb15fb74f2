package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/landed-cost/internal/model"
	"github.com/sells-group/landed-cost/pkg/anthropic"
)

const pricePromptTemplate = `You are a global product pricing assistant.

Your task is to return a clean JSON object with the following fields for the product: %q.

{
  "made_in": "Country where the product is manufactured",
  "factory_price": "Estimated factory cost in USD (as a string)",
  "lowest_price": { "price": "Lowest retail price in USD", "store": "Store name" },
  "highest_price": { "price": "Highest retail price in USD", "store": "Store name" }
}

Output ONLY the JSON object. Do not include any explanation or commentary.

If any value is unavailable, estimate it realistically. Only return "Unknown" or "00" if there's no information at all.`

// SentinelPricing returns the fixed degraded pricing object. Pricing is
// always "available", possibly as this explicit unknown.
func SentinelPricing() model.Pricing {
	return model.Pricing{
		MadeIn:       "Unknown",
		FactoryPrice: "00",
		LowestPrice:  model.PricePoint{Price: "00", Store: "Not found"},
		HighestPrice: model.PricePoint{Price: "00", Store: "Not found"},
	}
}

// PriceUnavailableError reports a hard failure of the pricing source. It
// carries the sentinel pricing so callers can distinguish "we failed
// outright" from "we degraded" while still offering a fallback.
type PriceUnavailableError struct {
	Fallback model.Pricing
	Err      error
}

func (e *PriceUnavailableError) Error() string {
	return fmt.Sprintf("price: source unavailable: %v", e.Err)
}

func (e *PriceUnavailableError) Unwrap() error { return e.Err }

// Pricer resolves manufacturing origin and price estimates via a single
// AI-inference adapter.
type Pricer struct {
	ai      anthropic.Client
	timeout time.Duration
}

// NewPricer creates the pricing stage.
func NewPricer(ai anthropic.Client, timeout time.Duration) *Pricer {
	return &Pricer{ai: ai, timeout: timeout}
}

// Quote resolves pricing for a product. A reply that is not valid JSON
// degrades to the sentinel object; a failed inference call returns a
// *PriceUnavailableError.
func (p *Pricer) Quote(ctx context.Context, product string) (*model.Pricing, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	reply, err := p.ai.Complete(ctx, "", fmt.Sprintf(pricePromptTemplate, product))
	if err != nil {
		return nil, &PriceUnavailableError{Fallback: SentinelPricing(), Err: err}
	}

	var pricing model.Pricing
	if jsonErr := json.Unmarshal([]byte(stripCodeFence(reply)), &pricing); jsonErr != nil {
		zap.L().Warn("price: reply is not valid JSON, using sentinel",
			zap.String("product", product),
			zap.Error(jsonErr),
		)
		pricing = SentinelPricing()
	}

	return &pricing, nil
}

// stripCodeFence removes a surrounding markdown code fence from a reply.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
