// Package storage keeps an append-only audit of pipeline runs.
package storage

import (
	"fmt"
	"strings"

	"github.com/SamPetering/slack-sales-notifier/pkg/logx"
)

// Open returns the configured store, or (nil, nil) when storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, nil
	case "file":
		return openFile(cfg, log)
	case "sqlite":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
