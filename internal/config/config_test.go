package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Env != "development" {
		t.Fatalf("expected development env, got %s", cfg.Env)
	}
	if cfg.BillCheckInterval != 3*time.Second {
		t.Fatalf("expected 3s bill check interval, got %s", cfg.BillCheckInterval)
	}
	if cfg.InvoiceTimeout != 10*time.Second {
		t.Fatalf("expected 10s invoice timeout, got %s", cfg.InvoiceTimeout)
	}
	if cfg.MaxFileSizeBytes != 5*1024*1024 {
		t.Fatalf("unexpected max file size %d", cfg.MaxFileSizeBytes)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("BASE_URL", "https://vortice.example.com/")
	t.Setenv("BILL_CHECK_INTERVAL", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg := Load()

	if cfg.HTTPAddr != ":9000" {
		t.Fatalf("expected :9000, got %s", cfg.HTTPAddr)
	}
	if cfg.BaseURL != "https://vortice.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.BaseURL)
	}
	if cfg.BillCheckInterval != 5*time.Second {
		t.Fatalf("expected 5s, got %s", cfg.BillCheckInterval)
	}
	if len(cfg.CorsAllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %d", len(cfg.CorsAllowedOrigins))
	}
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("JWT_EXPIRY", "not-a-number")
	t.Setenv("BILL_CHECK_INTERVAL", "sometimes")

	cfg := Load()

	if cfg.JWTExpirySeconds != 43200 {
		t.Fatalf("expected fallback expiry, got %d", cfg.JWTExpirySeconds)
	}
	if cfg.BillCheckInterval != 3*time.Second {
		t.Fatalf("expected fallback interval, got %s", cfg.BillCheckInterval)
	}
}

func TestObjectStoreEnabled(t *testing.T) {
	cfg := Config{}
	if cfg.ObjectStoreEnabled() {
		t.Fatal("empty config should not enable object store")
	}

	cfg.ObjectStoreEndpoint = "https://store.example.com"
	cfg.ObjectStoreBucket = "vortice"
	cfg.ObjectStorePublicBaseURL = "https://cdn.example.com"
	if !cfg.ObjectStoreEnabled() {
		t.Fatal("expected object store enabled")
	}
}
