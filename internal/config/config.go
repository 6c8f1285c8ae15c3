package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the wiring layer needs to assemble the core:
// remote credentials, the authenticated user id handed over by the app
// shell, local store paths and the maintenance policy.
type Config struct {
	SupabaseURL string
	SupabaseKey string
	UserID      string

	StorePath string
	KeyPath   string

	// SyncInterval > 0 makes syncd loop; zero means a single cycle.
	SyncInterval time.Duration
	// RealtimePollInterval drives the polling change feed.
	RealtimePollInterval time.Duration

	MaintenanceEnabled bool
	RetentionDays      int
	PurgeBatchSize     int
}

// Load reads configuration from the environment, with an optional .env
// file for local development. Missing .env is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		SupabaseURL:          os.Getenv("SUPABASE_URL"),
		SupabaseKey:          os.Getenv("SUPABASE_KEY"),
		UserID:               os.Getenv("USER_ID"),
		StorePath:            envDefault("STORE_PATH", "data/pocketledger.db"),
		KeyPath:              envDefault("KEY_PATH", "data/pocketledger.key"),
		SyncInterval:         envDuration("SYNC_INTERVAL", 0),
		RealtimePollInterval: envDuration("REALTIME_POLL_INTERVAL", 15*time.Second),
		MaintenanceEnabled:   envBool("MAINTENANCE_ENABLED", false),
		RetentionDays:        envInt("RETENTION_DAYS", 90),
		PurgeBatchSize:       envInt("PURGE_BATCH_SIZE", 100),
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_KEY must be set")
	}
	return cfg, nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
