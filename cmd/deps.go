package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landed-cost/internal/config"
	"github.com/sells-group/landed-cost/internal/rates"
	"github.com/sells-group/landed-cost/internal/resolve"
	"github.com/sells-group/landed-cost/pkg/anthropic"
	"github.com/sells-group/landed-cost/pkg/ddg"
	"github.com/sells-group/landed-cost/pkg/geocode"
	"github.com/sells-group/landed-cost/pkg/geoip"
	"github.com/sells-group/landed-cost/pkg/hts"
	"github.com/sells-group/landed-cost/pkg/imagesearch"
	"github.com/sells-group/landed-cost/pkg/vatlayer"
	"github.com/sells-group/landed-cost/pkg/vision"
)

// env bundles the constructed clients and pipeline for the commands.
type env struct {
	resolver *resolve.Resolver
	geocoder geocode.Client
}

// initEnv constructs every client from configuration and assembles the
// pipeline. Credentials are read once here; nothing looks them up later.
func initEnv(ctx context.Context, cfg *config.Config) (*env, error) {
	ai := anthropic.NewClient(cfg.Anthropic.Key,
		anthropic.WithModel(cfg.Anthropic.Model),
		anthropic.WithMaxTokens(cfg.Anthropic.MaxTokens),
		anthropic.WithRPS(cfg.Anthropic.RPS),
	)

	vis, err := vision.NewClient(ctx, cfg.Vision.Key, vision.WithModel(cfg.Vision.Model))
	if err != nil {
		return nil, eris.Wrap(err, "init vision client")
	}

	table, err := rates.Load()
	if err != nil {
		return nil, err
	}

	geo := geoip.NewClient(geoip.WithBaseURL(cfg.GeoIP.BaseURL))
	htsClient := hts.NewClient(hts.WithBaseURL(cfg.HTS.BaseURL))
	vat := vatlayer.NewClient(cfg.VATLayer.Key, vatlayer.WithBaseURL(cfg.VATLayer.BaseURL))
	scrape := ddg.NewClient(ddg.WithBaseURL(cfg.DuckDuckGo.BaseURL))

	var search imagesearch.Client
	if cfg.Search.Key != "" && cfg.Search.CX != "" {
		search = imagesearch.NewClient(cfg.Search.Key, cfg.Search.CX)
	}

	timeout := cfg.Resolve.AdapterTimeout()
	resolver := resolve.NewResolver(
		resolve.NewIdentifier(ai, vis, timeout),
		resolve.NewLocator(geo, timeout),
		resolve.NewPricer(ai, timeout),
		resolve.NewTariffStage(ai, htsClient, table, timeout),
		resolve.NewTaxStage(ai, vat, table, cfg.Tax.UseStaticTable, timeout),
		resolve.NewImageStage(scrape, search, ai, timeout),
	)

	return &env{
		resolver: resolver,
		geocoder: geocode.NewClient(cfg.Maps.Key),
	}, nil
}
