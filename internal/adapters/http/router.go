package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/stablebooks/internal/config"
	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/core/ports"
	"github.com/kirillkom/stablebooks/internal/observability/metrics"
)

// Services are the inbound ports the API exposes.
type Services struct {
	Ingest       ports.DocumentIngestor
	Documents    ports.DocumentReader
	Invoices     ports.InvoiceReader
	Intake       ports.InvoiceIntake
	Matcher      ports.EntityMatcher
	Reclassifier ports.Reclassifier
	Approvals    ports.ApprovalEngine
	Roster       ports.RosterService
	Categories   ports.CategoryRegistry
}

type Router struct {
	cfg       config.Config
	svc       Services
	metrics   *metrics.HTTPServerMetrics
	validator *requestValidator
}

// NewRouter builds the API. httpMetrics may be nil.
func NewRouter(cfg config.Config, svc Services, httpMetrics *metrics.HTTPServerMetrics) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	return &Router{cfg: cfg, svc: svc, metrics: httpMetrics, validator: validator}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocument)

	mux.HandleFunc("GET /v1/invoices", rt.listInvoices)
	mux.HandleFunc("GET /v1/invoices/{id}", rt.getInvoice)
	mux.HandleFunc("GET /v1/invoices/{id}/unmatched", rt.listUnmatched)
	mux.HandleFunc("POST /v1/invoices/{id}/unmatched/resolve", rt.resolveUnmatched)
	mux.HandleFunc("POST /v1/invoices/{id}/unmatched/create", rt.resolveByCreating)
	mux.HandleFunc("POST /v1/invoices/{id}/suggestions", rt.reapplySuggestions)
	mux.HandleFunc("POST /v1/invoices/{id}/items/{item_id}/confirm", rt.confirmItem)
	mux.HandleFunc("POST /v1/invoices/{id}/items/{item_id}/attribution", rt.assignAttribution)
	mux.HandleFunc("GET /v1/invoices/{id}/summary", rt.summarizeInvoice)
	mux.HandleFunc("POST /v1/invoices/{id}/approve", rt.approveInvoice)
	mux.HandleFunc("POST /v1/invoices/{id}/reject", rt.rejectInvoice)

	mux.HandleFunc("GET /v1/horses", rt.listHorses)
	mux.HandleFunc("POST /v1/horses", rt.registerHorse)
	mux.HandleFunc("POST /v1/horses/import", rt.importRoster)
	mux.HandleFunc("GET /v1/horses/{id}", rt.getHorse)
	mux.HandleFunc("POST /v1/horses/{id}/retire", rt.retireHorse)
	mux.HandleFunc("POST /v1/horses/{id}/reactivate", rt.reactivateHorse)

	mux.HandleFunc("GET /v1/categories", rt.listCategories)

	var rejections rejectionRecorder
	if rt.metrics != nil {
		rejections = rt.metrics
	}

	var handler http.Handler = rt.validator.middleware(mux)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait(rt.cfg), rejections)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rejections)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = recoverMiddleware(handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": rt.svc.Categories.List()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads an optional JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.WrapError(domain.ErrValidation, "decode request body", err)
}

func requireField(op, name, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.NewError(domain.ErrValidation, op, "%s is required", name)
	}
	return nil
}
