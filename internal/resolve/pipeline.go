package resolve

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landed-cost/internal/model"
)

// Resolver sequences the six stages in fixed order, threading the
// accumulating context. Location and pricing failures abort; everything
// else degrades to sentinels and the pipeline advances.
type Resolver struct {
	Identify *Identifier
	Locate   *Locator
	Price    *Pricer
	Tariff   *TariffStage
	Tax      *TaxStage
	Image    *ImageStage
}

// NewResolver assembles the pipeline from its stages.
func NewResolver(identify *Identifier, locate *Locator, price *Pricer, tariff *TariffStage, tax *TaxStage, image *ImageStage) *Resolver {
	return &Resolver{
		Identify: identify,
		Locate:   locate,
		Price:    price,
		Tariff:   tariff,
		Tax:      tax,
		Image:    image,
	}
}

// Run executes one full resolution. A returned error means the pipeline
// aborted; a returned Result is always fully shaped, with degraded fields
// carrying their sentinel values.
func (r *Resolver) Run(ctx context.Context, in model.Input) (*model.Result, error) {
	log := zap.L().With(zap.String("resolution_id", uuid.NewString()))
	c := &model.Context{}

	r.Identify.Run(ctx, in, c)
	log.Info("pipeline: product identified", zap.String("product", c.Product))

	if err := r.Locate.Run(ctx, in, c); err != nil {
		return nil, eris.Wrap(err, "pipeline: locate")
	}
	log.Info("pipeline: location resolved", zap.String("country", c.Location.Country))

	pricing, err := r.Price.Quote(ctx, c.Product)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: price")
	}
	if _, parseErr := strconv.ParseFloat(pricing.FactoryPrice, 64); parseErr != nil {
		return nil, eris.Errorf("pipeline: factory price %q is not numeric", pricing.FactoryPrice)
	}
	c.Pricing = pricing
	log.Info("pipeline: pricing resolved",
		zap.String("made_in", pricing.MadeIn),
		zap.String("factory_price", pricing.FactoryPrice),
	)

	tariff, err := r.Tariff.Calculate(ctx, c.Product, *c.Location, pricing.MadeIn, pricing.FactoryPrice)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: tariff")
	}
	c.Tariff = tariff
	log.Info("pipeline: tariff resolved", zap.String("summary", tariff.Summary))

	tax, err := r.Tax.Calculate(ctx, c.Product, *c.Location, pricing.FactoryPrice, tariff.Amount)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: tax")
	}
	c.Tax = tax
	log.Info("pipeline: tax resolved", zap.String("summary", tax.Summary))

	c.ImageURL = r.Image.Find(ctx, c.Product)

	return model.Assemble(c), nil
}
