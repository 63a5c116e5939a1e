package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iho/mpay/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("MPAY_USER", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL == "" {
		t.Fatalf("expected default database URL to be set")
	}

	if cfg.RedisURL != "" {
		t.Fatalf("expected cache to be disabled by default, got %q", cfg.RedisURL)
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}

	if cfg.SystemUser != "system" || cfg.SchedulerAgent != "scheduler" {
		t.Fatalf("unexpected scheduler identity %q/%q", cfg.SystemUser, cfg.SchedulerAgent)
	}

	if cfg.LockTimeout != 5*time.Second {
		t.Fatalf("expected default lock timeout 5s, got %s", cfg.LockTimeout)
	}

	if cfg.SchedulerBatch != 500 {
		t.Fatalf("expected default scheduler batch 500, got %d", cfg.SchedulerBatch)
	}

	if cfg.RateLimitRPS != 0 {
		t.Fatalf("expected rate limiting to be off by default, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOCK_TIMEOUT", "250ms")
	t.Setenv("MPAY_USER", "alice")
	t.Setenv("SCHEDULER_INTERVAL", "30s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

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

	if cfg.LockTimeout != 250*time.Millisecond {
		t.Fatalf("expected lock timeout override, got %s", cfg.LockTimeout)
	}

	if cfg.ActingUser != "alice" {
		t.Fatalf("expected acting user alice, got %q", cfg.ActingUser)
	}

	if cfg.SchedulerInterval != 30*time.Second {
		t.Fatalf("expected scheduler interval override, got %s", cfg.SchedulerInterval)
	}

	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit override, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("LOCK_TIMEOUT", "soon")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}

	t.Setenv("LOCK_TIMEOUT", "1s")
	t.Setenv("SCHEDULER_INTERVAL", "0s")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for zero scheduler interval")
	}

	t.Setenv("SCHEDULER_INTERVAL", "1m")
	t.Setenv("SCHEDULER_BATCH", "0")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for zero scheduler batch")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("MPAY_USER=bob\nCACHE_TTL=90s\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("MPAY_USER", "")
	t.Setenv("CACHE_TTL", "")
	os.Unsetenv("MPAY_USER")
	os.Unsetenv("CACHE_TTL")

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.ActingUser != "bob" {
		t.Fatalf("expected acting user from file, got %q", cfg.ActingUser)
	}

	if cfg.CacheTTL != 90*time.Second {
		t.Fatalf("expected cache TTL from file, got %s", cfg.CacheTTL)
	}

	if _, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}
