package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
slack:
  token: xoxb-abc
  source_channel: sales
  log_channel: team-bot-processed-log
mode: development
logging:
  level: debug
  console: true
trigger:
  schedule: "*/5 * * * *"
  http:
    enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Slack.Token != "xoxb-abc" {
		t.Fatalf("token = %q", cfg.Slack.Token)
	}
	if cfg.Mode != ModeDevelopment {
		t.Fatalf("mode = %q", cfg.Mode)
	}
	if cfg.Slack.HistoryLimit != 10 || cfg.Slack.LedgerScanLimit != 100 {
		t.Fatalf("limits not defaulted: %+v", cfg.Slack)
	}
	if cfg.Trigger.HTTP.Addr != "127.0.0.1:8787" {
		t.Fatalf("http addr = %q", cfg.Trigger.HTTP.Addr)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "slack": {"token": "xoxb-json", "source_channel": "sales", "log_channel": "log"},
  "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}, "slack": {"enabled": false, "channel": "", "min_level": "", "rate_per_sec": 0}},
  "trigger": {"http": {"enabled": false}}
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeProduction {
		t.Fatalf("mode not defaulted to production: %q", cfg.Mode)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
slack:
  token: xoxb-abc
bogus_section: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadTokenFromEnv(t *testing.T) {
	t.Setenv("SLACK_TOKEN", "xoxb-env")
	path := writeConfig(t, "config.yaml", `
logging:
  level: info
  console: true
trigger:
  http:
    enabled: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Slack.Token != "xoxb-env" {
		t.Fatalf("token = %q, want env fallback", cfg.Slack.Token)
	}
}

func TestLoadMissingTokenFatal(t *testing.T) {
	t.Setenv("SLACK_TOKEN", "")
	path := writeConfig(t, "config.yaml", `
logging:
  level: info
  console: true
trigger:
  http:
    enabled: false
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestValidateRejectsSameChannels(t *testing.T) {
	t.Setenv("SLACK_TOKEN", "xoxb-abc")
	path := writeConfig(t, "config.yaml", `
slack:
  source_channel: same
  log_channel: same
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for identical channels")
	}
}

func TestValidateRejectsBadMode(t *testing.T) {
	t.Setenv("SLACK_TOKEN", "xoxb-abc")
	path := writeConfig(t, "config.yaml", `
mode: staging
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}
