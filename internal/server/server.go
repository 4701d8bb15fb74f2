// Package server exposes the resolution pipeline over HTTP. Handlers
// validate input and delegate to the stages directly; stages never call
// each other over the network.
package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/landed-cost/internal/resolve"
	"github.com/sells-group/landed-cost/pkg/geocode"
)

// Server wires the pipeline and its stage operations to HTTP routes.
type Server struct {
	resolver *resolve.Resolver
	geocoder geocode.Client
}

// New creates a Server.
func New(resolver *resolve.Resolver, geocoder geocode.Client) *Server {
	return &Server{resolver: resolver, geocoder: geocoder}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/analyze", s.handleAnalyze)
	r.Post("/identify-product-from-image", s.handleIdentifyFromImage)
	r.Get("/location", s.handleLocation)
	r.Get("/reverse-geocode", s.handleReverseGeocode)
	r.Post("/product-price", s.handleProductPrice)
	r.Post("/calculate-tariff", s.handleCalculateTariff)
	r.Post("/calculate-tax", s.handleCalculateTax)
	r.Post("/product-image", s.handleProductImage)
	r.Post("/final-result", s.handleFinalResult)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: write response", zap.Error(err))
	}
}

func parseCoord(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// clientIP returns the first entry of X-Forwarded-For, else the peer
// address of the connection.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
