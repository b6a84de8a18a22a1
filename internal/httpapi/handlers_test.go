package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"shopkhata/backend/internal/apperr"
	"shopkhata/backend/internal/cache"
	"shopkhata/backend/internal/service"
	"shopkhata/backend/internal/store/memory"
)

func newTestHandler(secret string) http.Handler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := service.New(memory.New(), cache.NoopReportCache{}, time.Minute, logger, "main-shop")
	api := New(svc, NewShopTokenManager(secret), "http://127.0.0.1:3000", logger)
	return api.Handler()
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request failed: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response failed: %v (body %s)", err, rec.Body.String())
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler("")

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["ok"] != true {
		t.Fatalf("expected ok true, got %v", payload["ok"])
	}
}

func TestProductAndBillFlow(t *testing.T) {
	handler := newTestHandler("")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/unit-types", map[string]any{"title": "count"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create unit type: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	unitTypeID, _ := decodeBody(t, rec)["id"].(string)
	if unitTypeID == "" {
		t.Fatalf("expected unit type id in response")
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", map[string]any{
		"name":         "Farm Eggs",
		"group_name":   "dairy",
		"unit_type_id": unitTypeID,
		"sale_price":   30,
		"cost_price":   22,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	productID, _ := decodeBody(t, rec)["id"].(string)
	if productID == "" {
		t.Fatalf("expected product id in response")
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/bills", map[string]any{
		"type":             "WALKIN",
		"lines":            []map[string]any{{"product_id": productID, "qty": 2}},
		"discount_percent": 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create bill: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	bill := decodeBody(t, rec)
	if bill["bill_no"] != "B-000001" {
		t.Fatalf("expected bill_no B-000001, got %v", bill["bill_no"])
	}
	if bill["total"] != "54" {
		t.Fatalf("expected total 54, got %v", bill["total"])
	}

	billID, _ := bill["id"].(string)
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/bills/"+billID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get bill: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/bills/by-no/B-000001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get bill by number: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["id"] != billID {
		t.Fatalf("expected bill-by-number to return the same bill")
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/bills/by-no/B-999999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown bill number: expected 404, got %d", rec.Code)
	}
}

func TestServiceErrorStatusMapping(t *testing.T) {
	handler := newTestHandler("")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/bills", map[string]any{
		"type":  "WALKIN",
		"lines": []map[string]any{{"product_id": "no-such-product", "qty": 1}},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown product: expected 404, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/bills", map[string]any{
		"type": "WALKIN",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing lines: expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/bills/missing-bill", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown bill: expected 404, got %d", rec.Code)
	}
}

func TestUnavailableErrorsMapTo503(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := service.New(memory.New(), cache.NoopReportCache{}, time.Minute, logger, "main-shop")
	api := New(svc, NewShopTokenManager(""), "http://127.0.0.1:3000", logger)

	rec := httptest.NewRecorder()
	api.writeServiceError(rec, apperr.Unavailable("database unavailable", errors.New("dial tcp 127.0.0.1:5432: connection refused")))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for unavailable errors, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["error"] != "internal server error" {
		t.Fatalf("expected masked 5xx message, got %v", payload["error"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler("")

	rec := doJSON(t, handler, http.MethodDelete, "/api/v1/products", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestRejectsUnknownJSONFields(t *testing.T) {
	handler := newTestHandler("")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/suppliers", map[string]any{
		"name":       "Hillside Hatchery",
		"unexpected": "field",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown fields, got %d", rec.Code)
	}
}

func TestSecurityHeadersAndPreflight(t *testing.T) {
	handler := newTestHandler("")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bills", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected nosniff header")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://127.0.0.1:3000" {
		t.Fatalf("expected configured origin, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
