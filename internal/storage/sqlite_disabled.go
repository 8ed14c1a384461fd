//go:build !sqlite
// +build !sqlite

package storage

import (
	"errors"

	"github.com/SamPetering/slack-sales-notifier/pkg/logx"
)

// Built without the sqlite tag: direct users to the file driver.
func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	return nil, errors.New("sqlite storage requires building with -tags sqlite")
}
