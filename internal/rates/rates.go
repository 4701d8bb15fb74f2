// Package rates loads the static bilateral-tariff and country-tax tables
// that back the offline rate adapters. The tables are embedded in the binary
// and immutable after load.
package rates

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var tablesYAML []byte

type tableFile struct {
	Tariffs  map[string]map[string]map[string]float64 `yaml:"tariffs"`
	TaxRates map[string]float64                       `yaml:"tax_rates"`
}

// Table exposes read-only lookups over the embedded rate tables.
type Table struct {
	tariffs map[string]map[string]map[string]float64
	tax     map[string]float64
}

// Load parses the embedded tables. Country keys are title-cased so lookups
// tolerate caller casing ("uk" and "UK" hit the same row).
func Load() (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(tablesYAML, &f); err != nil {
		return nil, eris.Wrap(err, "rates: parse tables")
	}

	t := &Table{
		tariffs: make(map[string]map[string]map[string]float64, len(f.Tariffs)),
		tax:     make(map[string]float64, len(f.TaxRates)),
	}
	for code, byOrigin := range f.Tariffs {
		t.tariffs[code] = make(map[string]map[string]float64, len(byOrigin))
		for origin, byDest := range byOrigin {
			dests := make(map[string]float64, len(byDest))
			for dest, rate := range byDest {
				dests[normalizeCountry(dest)] = rate
			}
			t.tariffs[code][normalizeCountry(origin)] = dests
		}
	}
	for country, rate := range f.TaxRates {
		t.tax[normalizeCountry(country)] = rate
	}
	return t, nil
}

// BilateralTariff returns the static tariff rate for shipping goods under
// hsCode from origin to destination. The second return is false when no row
// matches.
func (t *Table) BilateralTariff(hsCode, origin, destination string) (float64, bool) {
	byOrigin, ok := t.tariffs[hsCode]
	if !ok {
		return 0, false
	}
	byDest, ok := byOrigin[normalizeCountry(origin)]
	if !ok {
		return 0, false
	}
	rate, ok := byDest[normalizeCountry(destination)]
	return rate, ok
}

// CountryTax returns the static consumer tax rate for a country.
func (t *Table) CountryTax(country string) (float64, bool) {
	rate, ok := t.tax[normalizeCountry(country)]
	return rate, ok
}

var titleCaser = cases.Title(language.English)

// normalizeCountry title-cases a country name. Short names are treated as
// abbreviations (UK, USA) and upper-cased instead.
func normalizeCountry(name string) string {
	if len(name) <= 3 {
		return strings.ToUpper(name)
	}
	return titleCaser.String(name)
}
