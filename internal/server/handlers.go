package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landed-cost/internal/model"
	"github.com/sells-group/landed-cost/internal/resolve"
)

const maxUploadBytes = 20 << 20

// resolveRequest is the JSON body shared by /analyze and /final-result.
// Multipart requests carry the same fields as form values plus an "image"
// file part.
type resolveRequest struct {
	Text        string          `json:"text"`
	BarcodeData string          `json:"barcode_data"`
	ImageURL    string          `json:"image_url"`
	Address     *model.Location `json:"address"`
}

// parseInput reads a resolve request from either a JSON or multipart body.
func parseInput(r *http.Request) (model.Input, error) {
	var in model.Input
	in.ClientIP = clientIP(r)

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return in, eris.Wrap(err, "server: parse multipart form")
		}
		in.Text = r.FormValue("text")
		in.BarcodeData = r.FormValue("barcode_data")
		in.ImageURL = r.FormValue("image_url")
		if addr := r.FormValue("address"); addr != "" {
			var loc model.Location
			if err := json.Unmarshal([]byte(addr), &loc); err != nil {
				return in, eris.Wrap(err, "server: parse address field")
			}
			in.Address = &loc
		}

		file, header, err := r.FormFile("image")
		if err == nil {
			defer file.Close() //nolint:errcheck
			data, readErr := io.ReadAll(io.LimitReader(file, maxUploadBytes))
			if readErr != nil {
				return in, eris.Wrap(readErr, "server: read image upload")
			}
			in.Image = data
			in.ImageName = header.Filename
		} else if !errors.Is(err, http.ErrMissingFile) {
			return in, eris.Wrap(err, "server: read image part")
		}
		return in, nil
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return in, eris.Wrap(err, "server: decode request body")
	}
	in.Text = req.Text
	in.BarcodeData = req.BarcodeData
	in.ImageURL = req.ImageURL
	in.Address = req.Address
	return in, nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	in, err := parseInput(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "error": err.Error()})
		return
	}

	diag, err := s.resolver.Identify.Analyze(r.Context(), in)
	if err != nil {
		zap.L().Error("server: analyze failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "result": diag})
}

func (s *Server) handleIdentifyFromImage(w http.ResponseWriter, r *http.Request) {
	in, err := parseInput(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if len(in.Image) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Image file is required"})
		return
	}

	name, labels, err := s.resolver.Identify.FromImage(r.Context(), in.Image)
	if err != nil {
		zap.L().Error("server: image identification failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "image identification failed",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"product_name": name, "labels": labels})
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if ip == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to detect location",
			"details": "no client address",
		})
		return
	}

	loc, err := s.resolver.Locate.FromIP(r.Context(), ip)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to detect location",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat := r.URL.Query().Get("lat")
	lng := r.URL.Query().Get("lng")
	if lat == "" || lng == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing lat/lng"})
		return
	}

	latF, latErr := parseCoord(lat)
	lngF, lngErr := parseCoord(lng)
	if latErr != nil || lngErr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid lat/lng"})
		return
	}

	address, err := s.geocoder.Reverse(r.Context(), latF, lngF)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Reverse geocoding failed", "details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"lat": lat, "lng": lng, "address": address})
}

type priceRequest struct {
	ProductName string          `json:"product_name"`
	Location    *model.Location `json:"location"`
}

func (s *Server) handleProductPrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ProductName == "" || req.Location == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing product_name or location"})
		return
	}

	pricing, err := s.resolver.Price.Quote(r.Context(), req.ProductName)
	if err != nil {
		var unavailable *resolve.PriceUnavailableError
		if errors.As(err, &unavailable) {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error": "Failed to fetch product details",
				"fallback": map[string]any{
					"product":       req.ProductName,
					"made_in":       unavailable.Fallback.MadeIn,
					"factory_price": unavailable.Fallback.FactoryPrice,
					"lowest_price":  unavailable.Fallback.LowestPrice,
					"highest_price": unavailable.Fallback.HighestPrice,
				},
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"product":       req.ProductName,
		"location":      req.Location,
		"made_in":       pricing.MadeIn,
		"factory_price": pricing.FactoryPrice,
		"lowest_price":  pricing.LowestPrice,
		"highest_price": pricing.HighestPrice,
	})
}

type tariffRequest struct {
	ProductName  string          `json:"product_name"`
	Location     *model.Location `json:"location"`
	MadeIn       string          `json:"made_in"`
	FactoryPrice string          `json:"factory_price"`
}

func (s *Server) handleCalculateTariff(w http.ResponseWriter, r *http.Request) {
	var req tariffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ProductName == "" || req.Location == nil || req.MadeIn == "" || req.FactoryPrice == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields"})
		return
	}

	tariff, err := s.resolver.Tariff.Calculate(r.Context(), req.ProductName, *req.Location, req.MadeIn, req.FactoryPrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, tariff)
}

type taxRequest struct {
	ProductName  string          `json:"product_name"`
	Location     *model.Location `json:"location"`
	FactoryPrice string          `json:"factory_price"`
	TariffAmount *string         `json:"tariff_amount"`
}

func (s *Server) handleCalculateTax(w http.ResponseWriter, r *http.Request) {
	var req taxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ProductName == "" || req.Location == nil || req.Location.Country == "" ||
		req.FactoryPrice == "" || req.TariffAmount == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required product or location data"})
		return
	}

	tax, err := s.resolver.Tax.Calculate(r.Context(), req.ProductName, *req.Location, req.FactoryPrice, *req.TariffAmount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, tax)
}

type imageRequest struct {
	ProductName string `json:"product_name"`
}

func (s *Server) handleProductImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ProductName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing product_name"})
		return
	}

	url := s.resolver.Image.Find(r.Context(), req.ProductName)
	writeJSON(w, http.StatusOK, map[string]string{"product": req.ProductName, "image_url": url})
}

func (s *Server) handleFinalResult(w http.ResponseWriter, r *http.Request) {
	in, err := parseInput(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := s.resolver.Run(r.Context(), in)
	if err != nil {
		zap.L().Error("server: resolution failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "resolution failed",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}
