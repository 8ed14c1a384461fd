package config

// Config is the process-wide configuration, loaded once at startup and passed
// explicitly into the components that need it. The Slack token may also come
// from the SLACK_TOKEN environment variable; a missing token is fatal.
type Config struct {
	Slack SlackConfig `json:"slack"`

	// Mode distinguishes development from production. It only changes the
	// message-filtering predicate: production requires bot-authored messages,
	// development accepts hand-typed ones.
	Mode string `json:"mode,omitempty"`

	Logging LoggingConfig  `json:"logging"`
	Trigger TriggerConfig  `json:"trigger"`
	Notify  NotifyConfig   `json:"notify,omitempty"`
	Storage *StorageConfig `json:"storage,omitempty"`
}

type SlackConfig struct {
	// Token is the gateway credential. Falls back to SLACK_TOKEN.
	Token string `json:"token,omitempty"`

	// SourceChannel must pre-exist; it is monitored, never created.
	SourceChannel string `json:"source_channel"`
	// LogChannel is the idempotency ledger; created on demand if absent.
	LogChannel string `json:"log_channel"`

	// HistoryLimit caps the source-channel fetch per run.
	HistoryLimit int `json:"history_limit,omitempty"`
	// LedgerScanLimit bounds the dedup scan window over the log channel.
	// Events older than this window are invisible to the dedup check.
	LedgerScanLimit int `json:"ledger_scan_limit,omitempty"`

	RatePerSec int `json:"rate_per_sec,omitempty"`
	// Timeout is a Go duration string (e.g. "10s") for gateway HTTP calls.
	Timeout string `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string       `json:"level"`
	Console bool         `json:"console"`
	File    LoggingFile  `json:"file"`
	Slack   LoggingSlack `json:"slack"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingSlack mirrors the log channel sink: warnings and up, rate limited,
// posted to a channel so operators see failures where they already live.
type LoggingSlack struct {
	Enabled    bool   `json:"enabled"`
	Channel    string `json:"channel"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// TriggerConfig wires the two trigger surfaces. Both may be enabled at once;
// overlapping runs are not locked against each other (dedup only consults
// recorded ledger entries).
type TriggerConfig struct {
	// Schedule is a 5-field cron spec or a Go duration interval
	// (e.g. "*/5 * * * *" or "2m"). Empty disables the schedule trigger.
	Schedule string `json:"schedule,omitempty"`

	HTTP HTTPTriggerConfig `json:"http"`
}

type HTTPTriggerConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:8787"
	// Token is an optional bearer token; do not log it.
	Token string `json:"token,omitempty"`
}

// NotifyConfig selects the downstream notification driver:
// "stub" (default) or "desktop".
type NotifyConfig struct {
	Driver string `json:"driver,omitempty"`
}

// StorageConfig controls the optional run-audit store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./notifier_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
