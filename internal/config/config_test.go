package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr: %q", cfg.Addr)
	}
	if cfg.AccessTTL != 24*time.Hour {
		t.Fatalf("access ttl: %v", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 30*24*time.Hour {
		t.Fatalf("refresh ttl: %v", cfg.RefreshTTL)
	}
	if cfg.InviteTTL != 7*24*time.Hour {
		t.Fatalf("invite ttl: %v", cfg.InviteTTL)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Fatalf("store timeout: %v", cfg.StoreTimeout)
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("max body: %d", cfg.MaxBodyBytes)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VIBEBIZ_ADDR", ":9999")
	t.Setenv("VIBEBIZ_ACCESS_TTL", "1h")
	t.Setenv("VIBEBIZ_RATE_BURST", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("addr: %q", cfg.Addr)
	}
	if cfg.AccessTTL != time.Hour {
		t.Fatalf("access ttl: %v", cfg.AccessTTL)
	}
	if cfg.RateBurst != 5 {
		t.Fatalf("rate burst: %d", cfg.RateBurst)
	}
}

func TestLoadRejectsNonPositiveLifetimes(t *testing.T) {
	t.Setenv("VIBEBIZ_ACCESS_TTL", "-1h")
	if _, err := Load(); err == nil {
		t.Fatal("negative ttl must fail")
	}
}
