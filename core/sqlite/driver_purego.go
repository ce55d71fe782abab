//go:build !cgo_sqlite

package sqlite

import (
	"errors"
	"fmt"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const (
	driverName    = "sqlite"
	driverType    = "purego"
	driverPackage = "modernc.org/sqlite"
)

func dsn(path string, readOnly bool) string {
	params := fmt.Sprintf("_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", BusyTimeoutMillis)
	if path == ":memory:" {
		return path + "?" + params
	}
	if readOnly {
		return "file:" + path + "?mode=ro&" + params
	}
	return "file:" + path + "?" + params
}

func isConstraint(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqlite3lib.SQLITE_CONSTRAINT
	}
	return false
}
