package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/landed-cost/internal/rates"
	"github.com/sells-group/landed-cost/internal/resolve"
	"github.com/sells-group/landed-cost/pkg/geoip"
	"github.com/sells-group/landed-cost/pkg/hts"
)

type stubAI struct {
	replies map[string]string
	err     error
	calls   atomic.Int64
}

func (s *stubAI) Complete(_ context.Context, system, prompt string) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	for key, reply := range s.replies {
		if strings.Contains(prompt, key) || strings.Contains(system, key) {
			return reply, nil
		}
	}
	return "", eris.New("stubAI: no canned reply")
}

type stubVision struct {
	labels []string
	err    error
}

func (s *stubVision) DetectLabels(_ context.Context, _ []byte, _ string, max int) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	if max > 0 && len(s.labels) > max {
		return s.labels[:max], nil
	}
	return s.labels, nil
}

func (s *stubVision) DetectLabelsURL(_ context.Context, _ string, max int) ([]string, error) {
	return s.DetectLabels(nil, nil, "", max)
}

type stubGeo struct {
	loc *geoip.Location
	err error
}

func (s *stubGeo) Lookup(_ context.Context, ip string) (*geoip.Location, error) {
	if s.err != nil {
		return nil, s.err
	}
	loc := *s.loc
	loc.IP = ip
	return &loc, nil
}

type stubHTS struct{ duty string }

func (s *stubHTS) Search(_ context.Context, _ string) (*hts.SearchResponse, error) {
	if s.duty == "" {
		return &hts.SearchResponse{}, nil
	}
	return &hts.SearchResponse{Results: []hts.Result{{Duties: []hts.Duty{{Duty: s.duty}}}}}, nil
}

type stubVAT struct{}

func (stubVAT) Configured() bool { return false }

func (stubVAT) StandardRate(_ context.Context, _ string) (float64, bool, error) {
	return 0, false, nil
}

type stubImages struct{ url string }

func (s *stubImages) FirstImage(_ context.Context, _ string) (string, error) {
	return s.url, nil
}

type stubGeocoder struct {
	address string
	err     error
}

func (s *stubGeocoder) Reverse(_ context.Context, _, _ float64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.address, nil
}

type testEnv struct {
	ai     *stubAI
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	table, err := rates.Load()
	require.NoError(t, err)

	ai := &stubAI{replies: map[string]string{
		"pricing assistant": `{
			"made_in": "China",
			"factory_price": "200.00",
			"lowest_price": {"price": "249.99", "store": "Walmart"},
			"highest_price": {"price": "329.99", "store": "Best Buy"}
		}`,
		"customs expert":             "851712",
		"average import tariff rate": "10%",
		"consumer tax rate":          "7%",
		"product recognition expert": "Wireless Headphones",
	}}
	timeout := time.Second

	resolver := resolve.NewResolver(
		resolve.NewIdentifier(ai, &stubVision{labels: []string{"headphones", "audio", "electronics"}}, timeout),
		resolve.NewLocator(&stubGeo{loc: &geoip.Location{Country: "United States", CountryCode: "US", City: "Austin", Region: "Texas"}}, timeout),
		resolve.NewPricer(ai, timeout),
		resolve.NewTariffStage(ai, &stubHTS{duty: "15%"}, table, timeout),
		resolve.NewTaxStage(ai, stubVAT{}, table, false, timeout),
		resolve.NewImageStage(&stubImages{url: "https://img.example.com/p.jpg"}, nil, ai, timeout),
	)

	srv := New(resolver, &stubGeocoder{address: "1600 Amphitheatre Pkwy, Mountain View, CA"})
	return &testEnv{ai: ai, router: srv.Router()}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:54321"
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestFinalResultFullResolution(t *testing.T) {
	e := newTestEnv(t)
	rec := e.postJSON(t, "/final-result", map[string]any{
		"text": "Product name: Wireless Headphones",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Wireless Headphones", body["product"])
	assert.Equal(t, "China", body["made_in"])
	assert.Equal(t, "200.00", body["factory_price"])
	assert.Equal(t, "15% - $30.00", body["tariff"])
	assert.Equal(t, "7% - $16.10", body["tax"])
	assert.Equal(t, "https://img.example.com/p.jpg", body["image_url"])
}

func TestFinalResultExplicitAddress(t *testing.T) {
	e := newTestEnv(t)
	rec := e.postJSON(t, "/final-result", map[string]any{
		"text": "Product name: Wireless Headphones",
		"address": map[string]any{
			"country":      "Germany",
			"country_code": "DE",
			"city":         "Berlin",
		},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	addr, ok := body["address"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Germany", addr["country"])
	assert.Equal(t, "Berlin", addr["city"])
}

func TestProductPriceMissingFieldsRejectedBeforeAnySourceCall(t *testing.T) {
	e := newTestEnv(t)

	rec := e.postJSON(t, "/product-price", map[string]any{
		"location": map[string]any{"country": "Germany"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing product_name or location", decodeBody(t, rec)["error"])

	rec = e.postJSON(t, "/product-price", map[string]any{
		"product_name": "wireless headphones",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, int64(0), e.ai.calls.Load(), "validation must reject before any adapter runs")
}

func TestProductPriceSuccess(t *testing.T) {
	e := newTestEnv(t)
	rec := e.postJSON(t, "/product-price", map[string]any{
		"product_name": "wireless headphones",
		"location":     map[string]any{"country": "Germany"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "wireless headphones", body["product"])
	assert.Equal(t, "China", body["made_in"])
	assert.Equal(t, "200.00", body["factory_price"])
}

func TestProductPriceSourceFailureReturnsFallback(t *testing.T) {
	e := newTestEnv(t)
	e.ai.err = eris.New("inference down")

	rec := e.postJSON(t, "/product-price", map[string]any{
		"product_name": "wireless headphones",
		"location":     map[string]any{"country": "Germany"},
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	fallback, ok := body["fallback"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Unknown", fallback["made_in"])
	assert.Equal(t, "00", fallback["factory_price"])
}

func TestCalculateTariffValidation(t *testing.T) {
	e := newTestEnv(t)
	rec := e.postJSON(t, "/calculate-tariff", map[string]any{
		"product_name": "smartphone",
		"made_in":      "China",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", decodeBody(t, rec)["error"])
	assert.Equal(t, int64(0), e.ai.calls.Load())
}

func TestCalculateTariffSuccess(t *testing.T) {
	e := newTestEnv(t)
	rec := e.postJSON(t, "/calculate-tariff", map[string]any{
		"product_name":  "smartphone",
		"location":      map[string]any{"country": "United States"},
		"made_in":       "China",
		"factory_price": "200.00",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "851712", body["hs_code"])
	assert.Equal(t, "15%", body["tariff_rate"])
	assert.Equal(t, "30.00", body["tariff_amount"])
	assert.Equal(t, "15% - $30.00", body["summary"])
}

func TestCalculateTaxRequiresTariffAmountField(t *testing.T) {
	e := newTestEnv(t)
	rec := e.postJSON(t, "/calculate-tax", map[string]any{
		"product_name":  "smartphone",
		"location":      map[string]any{"country": "Germany"},
		"factory_price": "200.00",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required product or location data", decodeBody(t, rec)["error"])
}

func TestCalculateTaxSuccess(t *testing.T) {
	e := newTestEnv(t)
	rec := e.postJSON(t, "/calculate-tax", map[string]any{
		"product_name":  "smartphone",
		"location":      map[string]any{"country": "Germany"},
		"factory_price": "200.00",
		"tariff_amount": "30.00",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "7%", body["tax_rate"])
	assert.Equal(t, "16.10", body["tax_amount"])
}

func TestCalculateTaxZeroTariffAmountIsPresent(t *testing.T) {
	e := newTestEnv(t)
	rec := e.postJSON(t, "/calculate-tax", map[string]any{
		"product_name":  "smartphone",
		"location":      map[string]any{"country": "Germany"},
		"factory_price": "200.00",
		"tariff_amount": "00",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "14.00", decodeBody(t, rec)["tax_amount"])
}

func TestProductImageValidation(t *testing.T) {
	e := newTestEnv(t)
	rec := e.postJSON(t, "/product-image", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing product_name", decodeBody(t, rec)["error"])
}

func TestProductImageSuccess(t *testing.T) {
	e := newTestEnv(t)
	rec := e.postJSON(t, "/product-image", map[string]any{"product_name": "wireless headphones"})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "https://img.example.com/p.jpg", body["image_url"])
}

func TestLocationUsesForwardedFor(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/location", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "198.51.100.9", body["ip"])
	assert.Equal(t, "United States", body["country"])
	assert.Equal(t, "Austin, Texas, United States", body["full_address"])
}

func TestReverseGeocodeValidation(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/reverse-geocode?lat=37.42", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing lat/lng", decodeBody(t, rec)["error"])

	req = httptest.NewRequest(http.MethodGet, "/reverse-geocode?lat=north&lng=west", nil)
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid lat/lng", decodeBody(t, rec)["error"])
}

func TestReverseGeocodeSuccess(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/reverse-geocode?lat=37.42&lng=-122.08", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "37.42", body["lat"])
	assert.Equal(t, "1600 Amphitheatre Pkwy, Mountain View, CA", body["address"])
}

func TestIdentifyFromImageRequiresFile(t *testing.T) {
	e := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("text", "no file attached"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/identify-product-from-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Image file is required", decodeBody(t, rec)["error"])
}

func TestIdentifyFromImageSuccess(t *testing.T) {
	e := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "product.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake-jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/identify-product-from-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["product_name"])
	labels, ok := body["labels"].([]any)
	require.True(t, ok)
	assert.Len(t, labels, 3)
}

func TestAnalyzeTextOnly(t *testing.T) {
	e := newTestEnv(t)
	e.ai.replies["expert product identifier"] = "This is a pair of wireless headphones."

	rec := e.postJSON(t, "/analyze", map[string]any{"text": "bluetooth over-ear headphones"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	result, ok := body["result"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, result["text_analysis"])
}
