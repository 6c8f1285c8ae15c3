package config

import (
	"testing"
	"time"
)

func TestLoadRequiresRemoteCredentials(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("missing credentials accepted")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_KEY", "anon-key")
	t.Setenv("STORE_PATH", "")
	t.Setenv("SYNC_INTERVAL", "")
	t.Setenv("MAINTENANCE_ENABLED", "")
	t.Setenv("RETENTION_DAYS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorePath != "data/pocketledger.db" {
		t.Errorf("store path = %q", cfg.StorePath)
	}
	if cfg.SyncInterval != 0 {
		t.Errorf("sync interval = %v, want 0", cfg.SyncInterval)
	}
	if cfg.MaintenanceEnabled {
		t.Error("maintenance enabled by default")
	}
	if cfg.RetentionDays != 90 || cfg.PurgeBatchSize != 100 {
		t.Errorf("retention = %d batch = %d", cfg.RetentionDays, cfg.PurgeBatchSize)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_KEY", "anon-key")
	t.Setenv("SYNC_INTERVAL", "2m")
	t.Setenv("MAINTENANCE_ENABLED", "true")
	t.Setenv("RETENTION_DAYS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SyncInterval != 2*time.Minute {
		t.Errorf("sync interval = %v", cfg.SyncInterval)
	}
	if !cfg.MaintenanceEnabled || cfg.RetentionDays != 30 {
		t.Errorf("maintenance = %v retention = %d", cfg.MaintenanceEnabled, cfg.RetentionDays)
	}
}
