package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL == "" {
		t.Fatalf("expected default database URL to be set")
	}

	if cfg.RedisURL != "" {
		t.Fatalf("expected redis to be disabled by default, got %q", cfg.RedisURL)
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}

	if cfg.LockTimeout != 5*time.Second || cfg.TransactionTimeout != 10*time.Second {
		t.Fatalf("unexpected engine timeouts: lock=%s txn=%s", cfg.LockTimeout, cfg.TransactionTimeout)
	}

	if !cfg.FlagThreshold.IsZero() {
		t.Fatalf("expected flagging disabled by default, got %s", cfg.FlagThreshold)
	}

	if cfg.OutboxRetention != 7*24*time.Hour {
		t.Fatalf("expected outbox retention default 168h, got %s", cfg.OutboxRetention)
	}

	if cfg.StalePendingAfter != 5*time.Minute {
		t.Fatalf("expected stale pending default 5m, got %s", cfg.StalePendingAfter)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_TIMEOUT", "45s")
	t.Setenv("LOCK_TIMEOUT", "250ms")
	t.Setenv("FLAG_THRESHOLD", "10000.50")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("OUTBOX_STREAM", "custom.events")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("expected custom database URL, got %s", cfg.DatabaseURL)
	}

	if cfg.RedisURL != "redis://example" {
		t.Fatalf("expected custom redis URL, got %s", cfg.RedisURL)
	}

	if cfg.HTTPPort != "9090" {
		t.Fatalf("expected HTTP port override, got %s", cfg.HTTPPort)
	}

	if cfg.DatabaseTimeout != 45*time.Second {
		t.Fatalf("expected database timeout override, got %s", cfg.DatabaseTimeout)
	}

	if cfg.LockTimeout != 250*time.Millisecond {
		t.Fatalf("expected lock timeout override, got %s", cfg.LockTimeout)
	}

	if !cfg.FlagThreshold.Equal(decimal.RequireFromString("10000.50")) {
		t.Fatalf("expected flag threshold override, got %s", cfg.FlagThreshold)
	}

	if !cfg.AutoMigrate {
		t.Fatalf("expected auto migrate to be enabled")
	}

	if cfg.OutboxStream != "custom.events" {
		t.Fatalf("expected outbox stream override, got %s", cfg.OutboxStream)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("LOCK_TIMEOUT", "soon")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestLoadInvalidThreshold(t *testing.T) {
	t.Setenv("FLAG_THRESHOLD", "lots")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid threshold")
	}
}
