package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the on-disk YAML configuration.
//
// Secrets (the Discord token) are intentionally NOT part of this file; they are
// read from the environment (.env) so the config can be committed and
// hot-reloaded safely.
type Config struct {
	Discord   DiscordConfig   `yaml:"discord"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
}

type DiscordConfig struct {
	// GuildID scopes slash-command registration to one guild (instant sync).
	// Empty registers commands globally.
	GuildID string `yaml:"guild_id"`
}

type LoggingConfig struct {
	Level   string         `yaml:"level"`
	Console bool           `yaml:"console"`
	File    LogFileConfig  `yaml:"file"`
}

type LogFileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout string `yaml:"busy_timeout"` // Go duration string, e.g. "5s"
}

// SchedulerConfig controls the durable one-shot job scheduler.
//
// MisfireGrace is the tolerance window after a job's fire time during which a
// slightly-delayed job still fires. Jobs found past that window at startup are
// dropped from the scheduler's own storage; the reconciliation pass owns
// catch-up for long outages.
type SchedulerConfig struct {
	Workers      int    `yaml:"workers"`
	QueueSize    int    `yaml:"queue_size"`
	MisfireGrace string `yaml:"misfire_grace"` // Go duration string, default "60s"
}

// DeliveryConfig bounds the outbound DM dispatcher. RatePerSec <= 0 disables
// pacing.
type DeliveryConfig struct {
	QueueSize  int `yaml:"queue_size"`
	RatePerSec int `yaml:"rate_per_sec"`
}

// ReconcileConfig controls the startup reconciliation pass and the periodic
// sweep that retries reminders whose delivery failed.
type ReconcileConfig struct {
	// BatchSize is the number of deliveries between rate-limit pauses.
	BatchSize int `yaml:"batch_size"`
	// BatchPause is the pause applied after each batch.
	BatchPause string `yaml:"batch_pause"` // Go duration string, default "1s"
	// SweepSpec is a cron spec (or "@every ...") for periodic re-reconciliation.
	// Empty disables the sweep.
	SweepSpec string `yaml:"sweep_spec"`
}

// Validate rejects configs that would misbehave at runtime. It is also used by
// Watch() before committing a hot-reloaded file.
func (c *Config) Validate() error {
	if c.Scheduler.Workers < 0 {
		return fmt.Errorf("scheduler.workers must be >= 0")
	}
	if c.Scheduler.QueueSize < 0 {
		return fmt.Errorf("scheduler.queue_size must be >= 0")
	}
	if c.Delivery.QueueSize < 0 {
		return fmt.Errorf("delivery.queue_size must be >= 0")
	}
	if c.Delivery.RatePerSec < 0 {
		return fmt.Errorf("delivery.rate_per_sec must be >= 0")
	}
	if c.Reconcile.BatchSize < 0 {
		return fmt.Errorf("reconcile.batch_size must be >= 0")
	}
	if _, err := ParseDurationField("scheduler.misfire_grace", c.Scheduler.MisfireGrace); err != nil {
		return err
	}
	if _, err := ParseDurationField("database.busy_timeout", c.Database.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("reconcile.batch_pause", c.Reconcile.BatchPause); err != nil {
		return err
	}
	if spec := strings.TrimSpace(c.Reconcile.SweepSpec); spec != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("reconcile.sweep_spec: invalid %q: %w", spec, err)
		}
	}
	return nil
}

// ParseDurationField parses an optional Go duration string; empty means zero.
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with a fallback for empty values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return ParseDurationField(path, raw)
}
