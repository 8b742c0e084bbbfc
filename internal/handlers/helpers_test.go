package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/boutique-admin/api/internal/domain"
)

func serve(t *testing.T, routes func(chi.Router), method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	routes(router)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return body
}

func fieldNames(t *testing.T, body map[string]any) []string {
	t.Helper()
	details, ok := body["details"].(map[string]any)
	if !ok {
		t.Fatalf("expected details object, got %v", body["details"])
	}
	raw, _ := details["fields"].([]any)
	names := make([]string, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			names = append(names, m["field"].(string))
		}
	}
	return names
}

func TestReadLimitedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("   "))
	if _, err := readLimitedBody(req, 10); !errors.Is(err, errEmptyBody) {
		t.Fatalf("expected errEmptyBody, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"something long"}`))
	if _, err := readLimitedBody(req, 10); !errors.Is(err, errBodyTooLarge) {
		t.Fatalf("expected errBodyTooLarge, got %v", err)
	}
}

func TestDecodeBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","bogus":true}`))
	var dst struct {
		Name string `json:"name"`
	}
	if err := decodeBody(req, 0, &dst); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestParseFilterValues(t *testing.T) {
	got := parseFilterValues([]string{"pending, shipped", "PENDING", ""})
	if len(got) != 2 || got[0] != "PENDING" || got[1] != "SHIPPED" {
		t.Fatalf("unexpected filters %v", got)
	}
}

func TestParseTimeParamAcceptsDates(t *testing.T) {
	ts, err := parseTimeParam("2026-03-01")
	if err != nil {
		t.Fatalf("parseTimeParam: %v", err)
	}
	if ts.Day() != 1 || ts.Month() != 3 {
		t.Fatalf("unexpected time %v", ts)
	}
	if _, err := parseTimeParam("yesterday"); err == nil {
		t.Fatal("expected error for free-form value")
	}
}

func TestMoneyUsesCurrencyPrecision(t *testing.T) {
	data, err := json.Marshal(map[string]any{
		"eur": money(domain.MustCurrency("EUR"), 2650),
		"jpy": money(domain.MustCurrency("JPY"), 2650),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"eur":26.50,"jpy":2650}` {
		t.Fatalf("unexpected encoding %s", data)
	}
}
