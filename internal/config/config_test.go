package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
discord:
  guild_id: "123456789"
logging:
  level: debug
  console: true
  file:
    enabled: true
    path: ./bot.log
database:
  path: ./data/bot.db
  busy_timeout: 5s
scheduler:
  workers: 2
  queue_size: 64
  misfire_grace: 60s
delivery:
  queue_size: 32
  rate_per_sec: 5
reconcile:
  batch_size: 5
  batch_pause: 1s
  sweep_spec: "@every 10m"
`

func TestLoadValidConfig(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, validConfig))

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.GuildID != "123456789" {
		t.Fatalf("guild_id = %q", cfg.Discord.GuildID)
	}
	if cfg.Scheduler.Workers != 2 || cfg.Scheduler.MisfireGrace != "60s" {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Delivery.RatePerSec != 5 {
		t.Fatalf("delivery = %+v", cfg.Delivery)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestParseRejectsBadConfigs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown field", body: "discrod:\n  guild_id: x\n"},
		{name: "bad duration", body: "scheduler:\n  misfire_grace: sixty\n"},
		{name: "negative duration", body: "reconcile:\n  batch_pause: -5s\n"},
		{name: "negative workers", body: "scheduler:\n  workers: -1\n"},
		{name: "bad sweep spec", body: "reconcile:\n  sweep_spec: whenever\n"},
		{name: "not yaml", body: "{{{"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(writeConfig(t, tt.body))
			if _, err := m.Parse(); err == nil {
				t.Fatalf("Parse accepted bad config:\n%s", tt.body)
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty = (%v, %v), want (0, nil)", d, err)
	}
	if d, err := ParseDurationField("x", " 90s "); err != nil || d != 90*time.Second {
		t.Fatalf("90s = (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("negative duration accepted")
	}
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default = (%v, %v), want (1m, nil)", d, err)
	}
}
