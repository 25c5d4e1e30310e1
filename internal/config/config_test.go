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
	if cfg.DBPath != "identity.db" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
	if cfg.SyncTimeout != 30*time.Second {
		t.Fatalf("SyncTimeout = %v", cfg.SyncTimeout)
	}
	if cfg.DecayRefreshCron != "@hourly" {
		t.Fatalf("DecayRefreshCron = %q", cfg.DecayRefreshCron)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("IDENTITY_DB", "/tmp/ident.db")
	t.Setenv("SYNC_TIMEOUT", "5s")
	t.Setenv("EMBED_CACHE_MB", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/ident.db" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
	if cfg.SyncTimeout != 5*time.Second {
		t.Fatalf("SyncTimeout = %v", cfg.SyncTimeout)
	}
	if cfg.EmbedCacheMB != 8 {
		t.Fatalf("EmbedCacheMB = %d", cfg.EmbedCacheMB)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Setenv("SYNC_TIMEOUT", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
