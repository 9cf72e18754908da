package config

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"10", 10 * time.Second},
		{"5m", 5 * time.Minute},
		{`"30s"`, 30 * time.Second},
		{" 1h ", time.Hour},
	}
	for _, c := range cases {
		got, err := parseDuration(c.in)
		if err != nil {
			t.Fatalf("parseDuration(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("parseDuration(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	for _, bad := range []string{"", "soon", "''"} {
		if _, err := parseDuration(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite::memory:")
	t.Setenv("JWT_ACCESS_TTL", "15")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "sqlite::memory:" {
		t.Fatalf("expected DATABASE_URL override, got %q", cfg.DatabaseURL)
	}
	if cfg.AccessTTL.Std() != 15*time.Second {
		t.Fatalf("expected 15s access ttl, got %v", cfg.AccessTTL.Std())
	}
	if cfg.RefreshTTL.Std() != 24*time.Hour {
		t.Fatalf("expected default refresh ttl 24h, got %v", cfg.RefreshTTL.Std())
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
}

func TestLoadRejectsNonPositiveUploadLimit(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero upload limit")
	}
}
