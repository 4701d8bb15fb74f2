package resolve

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landed-cost/internal/model"
	"github.com/sells-group/landed-cost/internal/rates"
	"github.com/sells-group/landed-cost/pkg/anthropic"
	"github.com/sells-group/landed-cost/pkg/vatlayer"
)

var taxPercentRe = regexp.MustCompile(`(\d+(\.\d+)?)%`)

const taxEstimateTemplate = `What is the current consumer tax rate (VAT or sales tax) in %s as of 2025?
Only return the number as a percentage like "15%%".`

// TaxStage resolves the consumer tax (VAT or sales tax) on the
// tariff-inclusive price. Unlike the tariff stage, an unresolved rate stays
// "unknown" and is never coerced to zero.
type TaxStage struct {
	ai             anthropic.Client
	vat            vatlayer.Client
	table          *rates.Table
	useStaticTable bool
	timeout        time.Duration
}

// NewTaxStage creates the tax stage. When useStaticTable is set the bundled
// country-tax table runs as the last adapter before the unknown terminal.
func NewTaxStage(ai anthropic.Client, vat vatlayer.Client, table *rates.Table, useStaticTable bool, timeout time.Duration) *TaxStage {
	return &TaxStage{ai: ai, vat: vat, table: table, useStaticTable: useStaticTable, timeout: timeout}
}

// Calculate resolves the tax for product delivered to loc, on the factory
// price plus the already-computed tariff amount.
func (t *TaxStage) Calculate(ctx context.Context, product string, loc model.Location, factoryPrice, tariffAmount string) (*model.Tax, error) {
	price, err := strconv.ParseFloat(factoryPrice, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "tax: factory price %q is not numeric", factoryPrice)
	}
	tariff, err := strconv.ParseFloat(tariffAmount, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "tax: tariff amount %q is not numeric", tariffAmount)
	}

	adapters := []Adapter[float64]{
		AdapterFunc[float64]{AdapterName: "vatlayer", Fn: func(ctx context.Context) Resolution[float64] {
			return t.resolveVATLayer(ctx, loc.CountryCode)
		}},
		AdapterFunc[float64]{AdapterName: "ai-estimate", Fn: func(ctx context.Context) Resolution[float64] {
			return t.estimate(ctx, loc.Country)
		}},
	}
	if t.useStaticTable {
		adapters = append(adapters, AdapterFunc[float64]{AdapterName: "static-table", Fn: func(ctx context.Context) Resolution[float64] {
			rate, ok := t.table.CountryTax(loc.Country)
			if !ok {
				return Absent[float64]()
			}
			return Resolved("static-table", rate)
		}})
	}

	cascade := Cascade[float64]{
		Stage:    "tax-rate",
		Default:  0,
		Timeout:  t.timeout,
		Adapters: adapters,
	}

	res := cascade.Run(ctx)
	tax := &model.Tax{
		Product: product,
		Country: loc.Country,
	}

	// An unresolved rate stays unknown; the default is a fall-through
	// marker, not a zero rate.
	if res.Source == DefaultSource {
		tax.Rate = "unknown"
		tax.Amount = "00"
		tax.Summary = "unknown - $00.00"
		return tax, nil
	}

	base := price + tariff
	amount := base * res.Value
	tax.Rate = fmt.Sprintf("%.0f%%", res.Value*100)
	tax.Amount = fmt.Sprintf("%.2f", amount)
	tax.Summary = fmt.Sprintf("%s - $%s", tax.Rate, tax.Amount)
	return tax, nil
}

// resolveVATLayer queries the external rate service. Skipped entirely when
// no credential is configured or the caller has no ISO country code.
func (t *TaxStage) resolveVATLayer(ctx context.Context, countryCode string) Resolution[float64] {
	if !t.vat.Configured() || countryCode == "" {
		return Absent[float64]()
	}

	rate, ok, err := t.vat.StandardRate(ctx, countryCode)
	if err != nil {
		return Failed[float64]("vatlayer", err)
	}
	if !ok {
		return Absent[float64]()
	}
	return Resolved("vatlayer", rate)
}

// estimate asks the inference source for the country's consumer tax rate.
func (t *TaxStage) estimate(ctx context.Context, country string) Resolution[float64] {
	reply, err := t.ai.Complete(ctx, "", fmt.Sprintf(taxEstimateTemplate, country))
	if err != nil {
		return Failed[float64]("ai-estimate", err)
	}

	m := taxPercentRe.FindStringSubmatch(reply)
	if m == nil {
		return Absent[float64]()
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Absent[float64]()
	}
	return Resolved("ai-estimate", val/100)
}
