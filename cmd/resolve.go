package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/landed-cost/internal/model"
)

var (
	resolveText     string
	resolveBarcode  string
	resolveImageURL string
	resolveCountry  string
	resolveCity     string
	resolveRegion   string
	resolveCode     string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Run one resolution pass and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if resolveText == "" && resolveBarcode == "" && resolveImageURL == "" {
			return eris.New("at least one of --text, --barcode, --image-url is required")
		}
		if resolveCountry == "" {
			return eris.New("--country is required (the CLI has no caller IP to geolocate)")
		}

		env, err := initEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		in := model.Input{
			Text:        resolveText,
			BarcodeData: resolveBarcode,
			ImageURL:    resolveImageURL,
			Address: &model.Location{
				Country:     resolveCountry,
				CountryCode: resolveCode,
				Region:      resolveRegion,
				City:        resolveCity,
			},
		}

		result, err := env.resolver.Run(cmd.Context(), in)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveText, "text", "", "free-text product description")
	resolveCmd.Flags().StringVar(&resolveBarcode, "barcode", "", "barcode payload")
	resolveCmd.Flags().StringVar(&resolveImageURL, "image-url", "", "product image URL")
	resolveCmd.Flags().StringVar(&resolveCountry, "country", "", "destination country")
	resolveCmd.Flags().StringVar(&resolveCode, "country-code", "", "destination ISO country code")
	resolveCmd.Flags().StringVar(&resolveRegion, "region", "", "destination region")
	resolveCmd.Flags().StringVar(&resolveCity, "city", "", "destination city")
	rootCmd.AddCommand(resolveCmd)
}
