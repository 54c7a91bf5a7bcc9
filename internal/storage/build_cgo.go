//go:build sqlite_cgo

package storage

// Built with -tags sqlite_cgo (CGO_ENABLED=1): the memo and sidecar use
// github.com/mattn/go-sqlite3, which is faster for large histories.

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver registered by mattn/go-sqlite3
	DriverName = "sqlite3"

	// BuildMode is reported by `whycontext version`
	BuildMode = "cgo"
)
