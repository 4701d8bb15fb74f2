// Package model defines the request, response, and accumulator types shared
// by the resolution pipeline and the HTTP surface. JSON field names follow
// the public API contract (snake_case).
package model

// Location is a resolved buyer location.
type Location struct {
	IP          string  `json:"ip,omitempty"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code,omitempty"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	FullAddress string  `json:"full_address,omitempty"`
}

// PricePoint is a retail price observation at a named store.
type PricePoint struct {
	Price string `json:"price"`
	Store string `json:"store"`
}

// Pricing holds manufacturing origin and price estimates for a product.
// Values are strings on the wire; "Unknown" and "00" are first-class
// sentinels, not absence markers.
type Pricing struct {
	MadeIn       string     `json:"made_in"`
	FactoryPrice string     `json:"factory_price"`
	LowestPrice  PricePoint `json:"lowest_price"`
	HighestPrice PricePoint `json:"highest_price"`
}

// Tariff is the import-tariff estimate for a product shipment.
// Rate "unknown" with Amount "00" means no source produced a nonzero rate.
type Tariff struct {
	Product string `json:"product"`
	HSCode  string `json:"hs_code"`
	From    string `json:"from"`
	To      string `json:"to"`
	Rate    string `json:"tariff_rate"`
	Amount  string `json:"tariff_amount"`
	Summary string `json:"summary"`
}

// Tax is the consumer-tax estimate on the tariff-inclusive price.
type Tax struct {
	Product string `json:"product"`
	Country string `json:"country"`
	Rate    string `json:"tax_rate"`
	Amount  string `json:"tax_amount"`
	Summary string `json:"summary"`
}

// ImageAnalysis captures what label detection saw in a product image.
type ImageAnalysis struct {
	Labels      []string `json:"labels"`
	Summary     string   `json:"summary"`
	ProductName string   `json:"product_name,omitempty"`
}

// Diagnostics carries per-source traces retained alongside the final answer.
type Diagnostics struct {
	TextAnalysis    string         `json:"text_analysis,omitempty"`
	ImageAnalysis   *ImageAnalysis `json:"image_analysis,omitempty"`
	BarcodeAnalysis string         `json:"barcode_analysis,omitempty"`
}

// Input is everything a caller may supply to start a resolution.
type Input struct {
	Text        string
	BarcodeData string
	ImageURL    string
	Image       []byte
	ImageName   string
	Address     *Location
	ClientIP    string
}

// HasImage reports whether any image material was supplied.
func (in Input) HasImage() bool {
	return len(in.Image) > 0 || in.ImageURL != ""
}

// Context is the accumulator threaded through the pipeline. Fields are set
// once by their owning stage and only read afterwards.
type Context struct {
	Product     string
	Location    *Location
	Pricing     *Pricing
	Tariff      *Tariff
	Tax         *Tax
	ImageURL    string
	Diagnostics Diagnostics
}

// Prices pairs the lowest and highest observed retail prices.
type Prices struct {
	Lowest  PricePoint `json:"lowest"`
	Highest PricePoint `json:"highest"`
}

// Result is the fully-shaped response of a completed pipeline run. Every
// field is populated; degraded stages contribute sentinel values.
type Result struct {
	Status        string         `json:"status"`
	Product       string         `json:"product"`
	Address       *Location      `json:"address"`
	MadeIn        string         `json:"made_in"`
	FactoryPrice  string         `json:"factory_price"`
	Prices        Prices         `json:"prices"`
	Tariff        string         `json:"tariff"`
	Tax           string         `json:"tax"`
	ImageURL      string         `json:"image_url"`
	ImageAnalysis *ImageAnalysis `json:"image_analysis,omitempty"`
}

// Assemble shapes the final Result from a completed Context.
func Assemble(c *Context) *Result {
	r := &Result{
		Status:   "success",
		Product:  c.Product,
		Address:  c.Location,
		ImageURL: c.ImageURL,
	}
	if c.Pricing != nil {
		r.MadeIn = c.Pricing.MadeIn
		r.FactoryPrice = c.Pricing.FactoryPrice
		r.Prices = Prices{
			Lowest:  c.Pricing.LowestPrice,
			Highest: c.Pricing.HighestPrice,
		}
	}
	if c.Tariff != nil {
		r.Tariff = c.Tariff.Summary
	}
	if c.Tax != nil {
		r.Tax = c.Tax.Summary
	}
	r.ImageAnalysis = c.Diagnostics.ImageAnalysis
	return r
}
