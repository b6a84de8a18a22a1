package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DEFAULT_SHOP_ID", "")
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "")
	t.Setenv("LOG_LEVEL", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.ShopID != "main-shop" {
		t.Fatalf("expected default shop id main-shop, got %q", cfg.ShopID)
	}
	if cfg.ReportCacheTTLSeconds != 300 {
		t.Fatalf("expected default report cache TTL 300, got %d", cfg.ReportCacheTTLSeconds)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.LogLevel)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected address :8080, got %q", cfg.Address())
	}
}

func TestLoadDoesNotInjectWeakTokenSecret(t *testing.T) {
	t.Setenv("SHOP_TOKEN_SECRET", "")

	cfg := Load()
	if cfg.ShopTokenSecret != "" {
		t.Fatalf("expected empty SHOP_TOKEN_SECRET when unset, got %q", cfg.ShopTokenSecret)
	}
}

func TestLoadRejectsBadReportTTL(t *testing.T) {
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "not-a-number")

	cfg := Load()
	if cfg.ReportCacheTTLSeconds != 300 {
		t.Fatalf("expected fallback TTL 300 for bad input, got %d", cfg.ReportCacheTTLSeconds)
	}
}
