package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Mode values.
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

// Load reads, strictly decodes, defaults, and validates the config file.
// YAML and JSON are both accepted; YAML is coerced to JSON so the strict
// decoder (DisallowUnknownFields) covers both formats.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.New("invalid config: trailing data")
		}
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Slack.Token == "" {
		c.Slack.Token = os.Getenv("SLACK_TOKEN")
	}
	if c.Slack.SourceChannel == "" {
		c.Slack.SourceChannel = "sales"
	}
	if c.Slack.LogChannel == "" {
		c.Slack.LogChannel = "sales-bot-processed-log"
	}
	if c.Slack.HistoryLimit <= 0 {
		c.Slack.HistoryLimit = 10
	}
	if c.Slack.LedgerScanLimit <= 0 {
		c.Slack.LedgerScanLimit = 100
	}
	if c.Mode == "" {
		c.Mode = ModeProduction
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Trigger.HTTP.Addr == "" {
		c.Trigger.HTTP.Addr = "127.0.0.1:8787"
	}
}

// Validate checks invariants that would otherwise only fail mid-run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Slack.Token) == "" {
		return errors.New("slack token is required (config slack.token or SLACK_TOKEN)")
	}
	if c.Mode != ModeProduction && c.Mode != ModeDevelopment {
		return fmt.Errorf("invalid mode %q (want %q or %q)", c.Mode, ModeProduction, ModeDevelopment)
	}
	if c.Slack.SourceChannel == c.Slack.LogChannel {
		return errors.New("source_channel and log_channel must differ")
	}
	return nil
}

// coerceToJSONBytes converts YAML config to JSON bytes so we can re-use the
// strict JSON decoder for both formats.
//
// Returns (jsonBytes, format, err) where format is "json" or "yaml".
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, "json", nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
	}

	v = normalizeYAML(v)

	j, err := json.Marshal(v)
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, "yaml", nil
}

// normalizeYAML ensures all map keys are strings so the result can be
// JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
