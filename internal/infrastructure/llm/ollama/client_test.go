package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/infrastructure/resilience"
)

var testCategories = []domain.Category{
	{ID: "vet", Name: "Veterinary"},
	{ID: "farrier", Name: "Farrier", Subcategories: []domain.Subcategory{{ID: "shoeing", Name: "Shoeing"}}},
}

func TestExtractInvoiceSendsCatalogAndParsesResponse(t *testing.T) {
	var capturedPrompt, capturedFormat string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		capturedPrompt, _ = payload["prompt"].(string)
		capturedFormat, _ = payload["format"].(string)
		inner := `{"invoice_number":"A-7","invoice_date":"2026-02-01","total":250.5,"currency":"usd",` +
			`"category":"vet","horse_name":"Bella","items":[` +
			`{"description":"Exam","amount":"100.50","suggested_category":"","horse_name":"Bella"},` +
			`{"description":"Trim","amount":150,"suggested_category":"farrier","horse_name":"Bella"}]}`
		_ = json.NewEncoder(w).Encode(map[string]string{"response": inner})
	}))
	defer server.Close()

	extractor := NewInvoiceExtractor(New(server.URL, "llama"))
	got, err := extractor.ExtractInvoice(context.Background(), "INVOICE A-7 exam and trim", testCategories)
	if err != nil {
		t.Fatalf("ExtractInvoice() error = %v", err)
	}
	if capturedFormat != "json" {
		t.Fatalf("format = %q, want json", capturedFormat)
	}
	for _, want := range []string{"INVOICE A-7", "- vet: Veterinary", "Farrier (Shoeing)"} {
		if !strings.Contains(capturedPrompt, want) {
			t.Fatalf("prompt missing %q: %s", want, capturedPrompt)
		}
	}
	if got.Total != "250.5" || got.InvoiceNumber != "A-7" || got.Category != "vet" {
		t.Fatalf("unexpected header fields: %+v", got)
	}
	if len(got.Items) != 2 || got.Items[0].Amount != "100.50" || got.Items[1].Amount != "150" {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	if got.Items[1].SuggestedCategory != "farrier" {
		t.Fatalf("suggestion lost: %+v", got.Items[1])
	}
}

func TestParseExtractionToleratesSurroundingText(t *testing.T) {
	got, err := parseExtraction("Here you go:\n{\"category\":\"vet\",\"total\":null,\"items\":[]}\nThanks")
	if err != nil {
		t.Fatalf("parseExtraction() error = %v", err)
	}
	if got.Category != "vet" || got.Total != "" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestParseExtractionRejectsGarbage(t *testing.T) {
	_, err := parseExtraction("no json here")
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = parseExtraction(`{"items":[{"amount":true}]}`)
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for boolean amount, got %v", err)
	}
}

func TestExtractInvoiceIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewInvoiceExtractor(New(server.URL, "llama")).ExtractInvoice(context.Background(), "text", testCategories)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("404 must not be temporary: %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		t.Fatalf("expected APIError, got %T", err)
	}
}

func TestExtractInvoiceRetriesUnavailableModel(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":"{\"category\":\"vet\",\"items\":[{\"description\":\"x\",\"amount\":\"1\"}]}"}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1},
	})
	client := NewWithOptions(server.URL, "llama", Options{Executor: exec})
	got, err := NewInvoiceExtractor(client).ExtractInvoice(context.Background(), "text", testCategories)
	if err != nil {
		t.Fatalf("ExtractInvoice() error = %v", err)
	}
	if calls.Load() != 2 || len(got.Items) != 1 {
		t.Fatalf("calls = %d, items = %d", calls.Load(), len(got.Items))
	}
}

func TestServerErrorsSurfaceAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewInvoiceExtractor(New(server.URL, "llama")).ExtractInvoice(context.Background(), "text", testCategories)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestAPIErrorPrefersOllamaErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid format"}`))
	}))
	defer server.Close()

	_, err := NewInvoiceExtractor(New(server.URL, "llama")).ExtractInvoice(context.Background(), "text", testCategories)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "invalid format" || apiErr.Temporary() {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}
