// Package sqlite selects the SQLite driver at build time.
//
// Build modes:
//   - Default: pure Go modernc.org/sqlite
//   - CGO (CGO_ENABLED=1 -tags cgo_sqlite): mattn/go-sqlite3
//
// Use Open instead of sql.Open so the DSN matches the active driver.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
)

// BusyTimeoutMillis is how long a connection waits on a locked database.
const BusyTimeoutMillis = 5000

// DriverName returns the database/sql driver name.
func DriverName() string {
	return driverName
}

// DriverType returns "cgo" for mattn/go-sqlite3 and "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a SQLite database with foreign keys enabled and a busy timeout.
// Use ":memory:" for a private in-memory database.
func Open(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	db, err := sql.Open(driverName, dsn(path, false))
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own database.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// OpenReadOnly opens a SQLite database in read-only mode.
func OpenReadOnly(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	return sql.Open(driverName, dsn(path, true))
}

// IsConstraintViolation reports whether err is a SQLite constraint failure
// (primary key, unique, foreign key, check or not null).
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if isConstraint(err) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "constraint failed")
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
