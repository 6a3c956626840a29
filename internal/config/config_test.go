package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("SESSION_PRICE", "")
	t.Setenv("SESSION_MRP", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := Load()
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("expected 10s request timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.SessionPrice != 10000 || cfg.SessionMRP != 12000 {
		t.Fatalf("expected default pricing 10000/12000, got %d/%d", cfg.SessionPrice, cfg.SessionMRP)
	}
	if cfg.SessionStore != "memory" {
		t.Fatalf("expected memory session store, got %s", cfg.SessionStore)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("API_ENDPOINT", "https://api.example.com/v1/")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("SESSION_STORE", " Redis ")
	t.Setenv("SESSION_PRICE", "900")
	t.Setenv("SANDBOX_TAX_PERCENTAGE", "12.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	cfg := Load()
	if cfg.APIBaseURL() != "https://api.example.com/v1" {
		t.Fatalf("expected production endpoint without trailing slash, got %s", cfg.APIBaseURL())
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.RequestTimeout)
	}
	if cfg.SessionStore != "redis" {
		t.Fatalf("expected normalized session store, got %q", cfg.SessionStore)
	}
	if cfg.SessionPrice != 900 {
		t.Fatalf("expected price override, got %d", cfg.SessionPrice)
	}
	if cfg.SandboxTaxPercentage != 12.5 {
		t.Fatalf("expected tax override, got %v", cfg.SandboxTaxPercentage)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected two CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestAPIBaseURLDevelopment(t *testing.T) {
	cfg := &Config{Env: "Development", LocalAPIEndpoint: "http://localhost:8090/api/v1/", APIEndpoint: "https://prod"}
	if got := cfg.APIBaseURL(); got != "http://localhost:8090/api/v1" {
		t.Fatalf("expected local endpoint, got %s", got)
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("SESSION_MRP", "lots")
	t.Setenv("REQUEST_TIMEOUT", "soon")
	cfg := Load()
	if cfg.SessionMRP != 12000 {
		t.Fatalf("expected fallback MRP, got %d", cfg.SessionMRP)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("expected fallback timeout, got %s", cfg.RequestTimeout)
	}
}
