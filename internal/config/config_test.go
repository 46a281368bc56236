package config

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORE_BACKEND", "SHARE_TOLERANCE", "TOTAL_TOLERANCE", "MATCH_SUGGESTION_LIMIT", "NATS_SUBJECT", "BREAKER_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.StoreBackend != StoreBackendPostgres {
		t.Fatalf("expected default backend postgres, got %q", cfg.StoreBackend)
	}
	if !cfg.ShareTolerance.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("expected share tolerance 0.01, got %s", cfg.ShareTolerance)
	}
	if !cfg.TotalTolerance.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("expected total tolerance 0.01, got %s", cfg.TotalTolerance)
	}
	if cfg.MatchSuggestionLimit != 3 {
		t.Fatalf("expected suggestion limit 3, got %d", cfg.MatchSuggestionLimit)
	}
	if cfg.NATSSubject != "invoices.documents.ingested" {
		t.Fatalf("unexpected subject %q", cfg.NATSSubject)
	}
	if !cfg.BreakerEnabled {
		t.Fatalf("expected breaker enabled by default")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("SHARE_TOLERANCE", "0.05")
	t.Setenv("TOTAL_TOLERANCE", " 0.10 ")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("BREAKER_ENABLED", "false")

	cfg := Load()
	if cfg.StoreBackend != StoreBackendMemory {
		t.Fatalf("expected memory backend, got %q", cfg.StoreBackend)
	}
	if !cfg.ShareTolerance.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("expected share tolerance 0.05, got %s", cfg.ShareTolerance)
	}
	if !cfg.TotalTolerance.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("expected total tolerance 0.1, got %s", cfg.TotalTolerance)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.BreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("SHARE_TOLERANCE", "-0.5")
	t.Setenv("TOTAL_TOLERANCE", "abc")
	t.Setenv("MATCH_SUGGESTION_LIMIT", "many")

	cfg := Load()
	if !cfg.ShareTolerance.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("negative tolerance must fall back, got %s", cfg.ShareTolerance)
	}
	if !cfg.TotalTolerance.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("unparsable tolerance must fall back, got %s", cfg.TotalTolerance)
	}
	if cfg.MatchSuggestionLimit != 3 {
		t.Fatalf("unparsable limit must fall back, got %d", cfg.MatchSuggestionLimit)
	}
}
