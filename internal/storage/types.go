package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the run-audit store.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file (requires the sqlite build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunRecord is the audit entry for one pipeline run. Keep it compact and
// schema-stable. It is observational only: the channel ledger, not this
// store, remains the dedup authority.
type RunRecord struct {
	At        time.Time `json:"at"`
	Trigger   string    `json:"trigger"`
	Outcome   string    `json:"outcome"`
	Key       string    `json:"key,omitempty"`
	Err       string    `json:"err,omitempty"`
	RecordErr string    `json:"record_err,omitempty"`
	TookMS    int64     `json:"took_ms"`
}

// Store persists run records.
type Store interface {
	AppendRun(ctx context.Context, r RunRecord) error
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}
