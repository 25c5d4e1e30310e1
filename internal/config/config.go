// Package config loads engine settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every knob the daemon reads at startup.
type Config struct {
	// DBPath is the SQLite file backing states, snapshots, personas, and
	// the sync job log.
	DBPath string `env:"IDENTITY_DB" envDefault:"identity.db"`
	// MetricsAddr serves the prometheus endpoint; empty disables it.
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9100"`
	// SyncTimeout bounds each module within a sync job.
	SyncTimeout time.Duration `env:"SYNC_TIMEOUT" envDefault:"30s"`
	// DecayRefreshCron schedules the background decay recompute.
	DecayRefreshCron string `env:"DECAY_REFRESH_CRON" envDefault:"@hourly"`
	// EmbedCacheMB budgets the read-through embedding cache.
	EmbedCacheMB int64 `env:"EMBED_CACHE_MB" envDefault:"64"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
