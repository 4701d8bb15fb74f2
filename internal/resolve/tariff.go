package resolve

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landed-cost/internal/model"
	"github.com/sells-group/landed-cost/internal/rates"
	"github.com/sells-group/landed-cost/pkg/anthropic"
	"github.com/sells-group/landed-cost/pkg/hts"
)

// UnclassifiedHSCode is the sentinel HS code used when classification finds
// no 6-digit match. It is a syntactically valid code; only callers that
// choose to check can tell it from a real one.
const UnclassifiedHSCode = "000000"

const usDestination = "united states"

var (
	hsCodeRe  = regexp.MustCompile(`\d{6}`)
	percentRe = regexp.MustCompile(`(\d+)%`)
)

const (
	hsCodePromptTemplate = `You are a customs expert. Give only the 6-digit HS Code for this product: %q. Only return the number.`

	tariffEstimateTemplate = `Estimate the average import tariff rate (as a percentage) for importing %q from %s to %s.
If unknown, reply with 0%%.
Return only the number with %% symbol.`
)

// TariffStage resolves the import tariff: HS classification, then a rate
// cascade (official US lookup, static bilateral table, AI estimate), then
// the amount. A zero and an unresolved rate are reported identically as
// "unknown"; the tax stage deliberately does not share this collapse.
type TariffStage struct {
	ai      anthropic.Client
	hts     hts.Client
	table   *rates.Table
	timeout time.Duration
}

// NewTariffStage creates the tariff stage.
func NewTariffStage(ai anthropic.Client, htsClient hts.Client, table *rates.Table, timeout time.Duration) *TariffStage {
	return &TariffStage{ai: ai, hts: htsClient, table: table, timeout: timeout}
}

// Calculate resolves the tariff for shipping product from madeIn to the
// destination location, on the given factory price.
func (t *TariffStage) Calculate(ctx context.Context, product string, loc model.Location, madeIn, factoryPrice string) (*model.Tariff, error) {
	price, err := strconv.ParseFloat(factoryPrice, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "tariff: factory price %q is not numeric", factoryPrice)
	}

	hsCode := t.classify(ctx, product)

	cascade := Cascade[float64]{
		Stage:   "tariff-rate",
		Default: 0,
		Timeout: t.timeout,
		Adapters: []Adapter[float64]{
			AdapterFunc[float64]{AdapterName: "us-hts", Fn: func(ctx context.Context) Resolution[float64] {
				return t.resolveUS(ctx, hsCode, loc.Country)
			}},
			AdapterFunc[float64]{AdapterName: "bilateral-table", Fn: func(ctx context.Context) Resolution[float64] {
				rate, ok := t.table.BilateralTariff(hsCode, madeIn, loc.Country)
				if !ok || rate == 0 {
					return Absent[float64]()
				}
				return Resolved("bilateral-table", rate)
			}},
			AdapterFunc[float64]{AdapterName: "ai-estimate", Fn: func(ctx context.Context) Resolution[float64] {
				return t.estimate(ctx, product, madeIn, loc.Country)
			}},
		},
	}

	res := cascade.Run(ctx)
	tariff := &model.Tariff{
		Product: product,
		HSCode:  hsCode,
		From:    madeIn,
		To:      loc.Country,
	}

	// A rate of exactly zero and an unresolved rate are indistinguishable
	// in the response.
	if res.Value == 0 {
		tariff.Rate = "unknown"
		tariff.Amount = "00"
		tariff.Summary = "unknown - $00.00"
		return tariff, nil
	}

	amount := price * res.Value
	tariff.Rate = fmt.Sprintf("%.0f%%", res.Value*100)
	tariff.Amount = fmt.Sprintf("%.2f", amount)
	tariff.Summary = fmt.Sprintf("%s - $%s", tariff.Rate, tariff.Amount)
	return tariff, nil
}

// classify resolves a 6-digit HS code via inference, degrading to the
// unclassified sentinel.
func (t *TariffStage) classify(ctx context.Context, product string) string {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	reply, err := t.ai.Complete(ctx, "", fmt.Sprintf(hsCodePromptTemplate, product))
	if err != nil {
		zap.L().Warn("tariff: hs classification failed", zap.String("product", product), zap.Error(err))
		return UnclassifiedHSCode
	}

	if code := hsCodeRe.FindString(reply); code != "" {
		return code
	}
	return UnclassifiedHSCode
}

// resolveUS queries the official USITC duty lookup. Only applicable when the
// destination is the United States; a duty with no percent token, or a
// zero percent, falls through to the next source.
func (t *TariffStage) resolveUS(ctx context.Context, hsCode, destination string) Resolution[float64] {
	if !strings.EqualFold(strings.TrimSpace(destination), usDestination) {
		return Absent[float64]()
	}

	resp, err := t.hts.Search(ctx, hsCode)
	if err != nil {
		return Failed[float64]("us-hts", err)
	}

	duty := resp.FirstDuty()
	if !strings.Contains(duty, "%") {
		return Absent[float64]()
	}

	val, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(duty, "%")), 64)
	if err != nil || val == 0 {
		return Absent[float64]()
	}
	return Resolved("us-hts", val/100)
}

// estimate asks the inference source for a whole-percent rate. A reply with
// no percent token is treated as an explicit zero, not as absence.
func (t *TariffStage) estimate(ctx context.Context, product, from, to string) Resolution[float64] {
	reply, err := t.ai.Complete(ctx, "", fmt.Sprintf(tariffEstimateTemplate, product, from, to))
	if err != nil {
		return Failed[float64]("ai-estimate", err)
	}

	m := percentRe.FindStringSubmatch(reply)
	if m == nil {
		return Resolved[float64]("ai-estimate", 0)
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Resolved[float64]("ai-estimate", 0)
	}
	return Resolved("ai-estimate", val/100)
}
