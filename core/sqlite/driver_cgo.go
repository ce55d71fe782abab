//go:build cgo_sqlite

package sqlite

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

const (
	driverName    = "sqlite3"
	driverType    = "cgo"
	driverPackage = "github.com/mattn/go-sqlite3"
)

func dsn(path string, readOnly bool) string {
	params := fmt.Sprintf("_foreign_keys=on&_busy_timeout=%d", BusyTimeoutMillis)
	if path == ":memory:" {
		return path + "?" + params
	}
	if readOnly {
		return "file:" + path + "?mode=ro&" + params
	}
	return "file:" + path + "?" + params
}

func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
